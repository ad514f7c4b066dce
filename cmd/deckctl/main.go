// Package main provides the deck control CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/19deck/internal/api/httpapi"
	"github.com/osa030/19deck/internal/app/notification"
)

var (
	app    = kingpin.New("deckctl", "19deck control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token (or set DECK_TOKEN env)").Envar("DECK_TOKEN").String()

	statusCmd  = app.Command("status", "Show the playback state")
	toggleCmd  = app.Command("toggle", "Toggle play/pause")
	nextCmd    = app.Command("next", "Skip to the next track")
	prevCmd    = app.Command("prev", "Restart the track or go to the previous one").Alias("previous")
	muteCmd    = app.Command("mute", "Toggle mute")
	shuffleCmd = app.Command("shuffle", "Toggle shuffle")
	repeatCmd  = app.Command("repeat", "Cycle repeat mode (off, all, one)")
	tracksCmd  = app.Command("tracks", "List the playlist").Alias("list")
	watchCmd   = app.Command("watch", "Print playback events as they happen")

	selectCmd   = app.Command("select", "Jump to a track")
	selectIndex = selectCmd.Arg("index", "Track number as shown by 'tracks'").Required().Int()

	seekCmd     = app.Command("seek", "Seek within the current track")
	seekSeconds = seekCmd.Arg("seconds", "Position in seconds").Required().Float64()

	volumeCmd     = app.Command("volume", "Set the volume")
	volumePercent = volumeCmd.Arg("percent", "Volume 0-100").Required().Int()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := httpapi.NewClient(*server, *token, nil)
	ctx := context.Background()

	var (
		state *notification.State
		err   error
	)
	switch command {
	case statusCmd.FullCommand():
		state, err = client.State(ctx)
	case toggleCmd.FullCommand():
		state, err = client.Toggle(ctx)
	case nextCmd.FullCommand():
		state, err = client.Next(ctx)
	case prevCmd.FullCommand():
		state, err = client.Previous(ctx)
	case muteCmd.FullCommand():
		state, err = client.Mute(ctx)
	case shuffleCmd.FullCommand():
		state, err = client.Shuffle(ctx)
	case repeatCmd.FullCommand():
		state, err = client.Repeat(ctx)
	case selectCmd.FullCommand():
		// Track numbers are shown 1-based
		state, err = client.Select(ctx, *selectIndex-1)
	case seekCmd.FullCommand():
		state, err = client.Seek(ctx, *seekSeconds)
	case volumeCmd.FullCommand():
		state, err = client.Volume(ctx, *volumePercent)
	case tracksCmd.FullCommand():
		listTracks(ctx, client)
		return
	case watchCmd.FullCommand():
		watch(client)
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printState(os.Stdout, state)
}

func listTracks(ctx context.Context, client *httpapi.Client) {
	pl, err := client.Playlist(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	state, err := client.State(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	renderTracks(os.Stdout, pl, state.Index)
}

func watch(client *httpapi.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Watching playback events. Press Ctrl+C to exit.")

	err := client.Watch(ctx, func(event string, n *notification.Notification) error {
		printNotification(os.Stdout, event, n)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
		os.Exit(1)
	}
}
