package main

import (
	"context"
	"fmt"

	"github.com/a-h/alex"
)

type VersionCommand struct {
}

func (c VersionCommand) Run(ctx context.Context) (err error) {
	fmt.Println(alex.Version)
	return nil
}
