package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "voice-command-service/internal/api/grpc"
	"voice-command-service/internal/service/session"
)

func main() {
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	command := flag.String("cmd", "state", "One of: start, stop, state, commands, watch")
	timeout := flag.Duration("timeout", 10*time.Second, "Call timeout (watch runs until the timeout)")
	flag.Parse()

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", *serverAddr)

	client := grpcapi.NewSessionServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *command {
	case "start":
		resp, err := client.Start(ctx)
		if err != nil {
			log.Fatalf("start failed: %v", err)
		}
		printState(resp.State)
	case "stop":
		resp, err := client.Stop(ctx)
		if err != nil {
			log.Fatalf("stop failed: %v", err)
		}
		printState(resp.State)
	case "state":
		resp, err := client.GetState(ctx)
		if err != nil {
			log.Fatalf("get state failed: %v", err)
		}
		printState(resp.State)
	case "commands":
		resp, err := client.ListCommands(ctx)
		if err != nil {
			log.Fatalf("list commands failed: %v", err)
		}
		for _, d := range resp.Commands {
			log.Printf("%-14s %-12s %-16s %v", d.Name, d.Category, d.Route, d.Patterns)
		}
	case "watch":
		watch(ctx, client)
	default:
		log.Fatalf("unknown command %q", *command)
	}
}

func watch(ctx context.Context, client *grpcapi.SessionServiceClient) {
	stream, err := client.WatchState(ctx)
	if err != nil {
		log.Fatalf("failed to watch state: %v", err)
	}
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Fatalf("watch failed: %v", err)
		}
		printState(resp.State)
	}
}

func printState(st session.RecognitionState) {
	log.Printf("phase=%s error=%s transcript=%q command=%q feedback=%q",
		st.Phase, st.ErrorKind, st.Transcript, st.LastMatchedCommand, st.FeedbackText)
}
