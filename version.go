package alex

// Version is overridden at build time with -ldflags "-X github.com/a-h/alex.Version=...".
var Version = "dev"
