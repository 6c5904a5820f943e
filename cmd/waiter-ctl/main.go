package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"waiter/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Daemon control socket")
	cli.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: waiter-ctl [flags] trigger|reload|status|stop\n")
		cli.PrintDefaults()
	}
	cli.Parse()

	cmd := ipc.CmdTrigger
	if cli.NArg() > 0 {
		cmd = cli.Arg(0)
	}

	reply, err := ipc.SendCommand(*socket, cmd)
	if err != nil {
		fmt.Println("waiter not running:", err)
		os.Exit(1)
	}
	if !reply.OK {
		fmt.Println("error:", reply.Error)
		os.Exit(1)
	}
	if reply.Text != "" {
		fmt.Println(reply.Text)
	}
}
