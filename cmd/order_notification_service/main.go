package main

import (
	"fmt"
	"os"
)

const serviceName = "order_notification_service"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
