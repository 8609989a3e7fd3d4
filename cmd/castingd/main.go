package main

import (
	"os"

	"github.com/open-rails/castingkit/internal/cli"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := cli.Execute(); err != nil {
		logrus.WithError(err).Error("castingd_failed")
		os.Exit(1)
	}
}
