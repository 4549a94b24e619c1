// Command chatclient is the iChat terminal client: it dials a chatserver
// over UDP, reads commands from stdin, and streams say/sayto/history
// replies into a local transcript file for `tail -f`. Grounded directly on
// chat_client.c's main(): a PID-suffixed transcript filename, a startup
// debug hint telling the operator how to follow it, and a clean shutdown
// once the writer side (stdin EOF or disconn) ends the session.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ichat/internal/client"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: chatclient <server-address>")
		os.Exit(1)
	}
	serverAddr := os.Args[1]

	transcriptName := fmt.Sprintf("iChat_%d.txt", os.Getpid())
	transcript, err := os.Create(transcriptName)
	if err != nil {
		log.Fatalf("[chatclient] create transcript %s: %v", transcriptName, err)
	}
	defer transcript.Close()

	fmt.Printf("[DEBUG] tail -f %s\n", transcriptName)

	state, err := client.New(serverAddr, transcript)
	if err != nil {
		log.Fatalf("[chatclient] %v", err)
	}
	defer state.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	state.Run(ctx, os.Stdin)

	fmt.Println("[DEBUG] exiting client")
}
