package main

import (
	"fmt"
	"os"
	"strings"

	cli "github.com/spf13/pflag"

	"carevox/internal/ipc"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: carevox-ctl [--socket path] listen|stop|say <text>|summary|status")
	cli.PrintDefaults()
}

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath(), "Control socket path")
	cli.Usage = usage
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	msg := ipc.ControlMessage{Cmd: args[0]}
	if msg.Cmd == ipc.CmdSay {
		msg.Text = strings.Join(args[1:], " ")
	}

	reply, err := ipc.Send(*socket, msg)
	if err != nil {
		fmt.Println("carevox-daemon not running:", err)
		os.Exit(1)
	}
	for _, line := range reply.Lines {
		fmt.Println(line)
	}
	if !reply.OK {
		fmt.Fprintln(os.Stderr, "error:", reply.Error)
		os.Exit(1)
	}
}
