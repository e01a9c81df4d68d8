// chat-ui-bridge drives a desktop chat application through its GUI: it
// reads incoming messages from screenshots and sends replies through the
// clipboard, exposing both as one-shot CLI commands.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"chat-ui-bridge/channel"
	"chat-ui-bridge/clipboard"
	"chat-ui-bridge/config"
	"chat-ui-bridge/contacts"
	"chat-ui-bridge/controller"
	"chat-ui-bridge/hotkey"
	"chat-ui-bridge/llm"
	"chat-ui-bridge/locator"
	"chat-ui-bridge/logutil"
	"chat-ui-bridge/state"
)

type app struct {
	cfg      *config.Config
	contacts *contacts.Mapper
	channel  *channel.Channel
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logutil.Setup(cfg.EnableFileLogging)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	llm.Init(&llm.Config{APIKey: cfg.APIKey, Model: cfg.Model, Providers: cfg.Providers})
	log.Printf("ocr model %s, key %s", cfg.Model, logutil.RedactKey(cfg.APIKey))
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("clipboard: %v", err)
	}
	mapper, err := contacts.Load(cfg.ContactsFile)
	if err != nil {
		return nil, err
	}
	loc, err := locator.New(cfg)
	if err != nil {
		return nil, err
	}
	ctrl := controller.New(cfg, loc, mapper)
	store := state.Open(cfg.StateFile)
	return &app{
		cfg:      cfg,
		contacts: mapper,
		channel:  channel.New(ctrl, store, cfg.HashThreshold),
	}, nil
}

func main() {
	var a *app

	root := &cobra.Command{
		Use:           "chat-ui-bridge",
		Short:         "Screenshot-driven transport for a desktop chat app",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp()
			return err
		},
	}

	var noAnchorUpdate bool
	read := &cobra.Command{
		Use:   "read <contact>",
		Short: "Poll a contact for new messages, printed as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := a.channel.Poll(args[0], !noAnchorUpdate)
			if err != nil {
				return err
			}
			return printEvents(events)
		},
	}
	read.Flags().BoolVar(&noAnchorUpdate, "no-anchor-update", false, "read without advancing the anchor")

	send := &cobra.Command{
		Use:   "send <contact> <text>",
		Short: "Send a text message to a contact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.channel.Send(args[0], args[1])
		},
	}

	sendCurrent := &cobra.Command{
		Use:   "send-current <text>",
		Short: "Send text into whatever conversation is open",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.channel.SendToCurrent(args[0])
		},
	}

	sendFile := &cobra.Command{
		Use:   "send-file <contact> <path>",
		Short: "Send an image file to a contact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.channel.SendFile(args[0], args[1])
		},
	}

	var interval time.Duration
	var abortKey string
	watch := &cobra.Command{
		Use:   "watch <contact>",
		Short: "Poll a contact repeatedly until the abort hotkey",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stop := make(chan struct{})
			hotkey.Listen(abortKey, func() {
				select {
				case <-stop:
				default:
					close(stop)
				}
			})
			log.Printf("watching %q every %s, press %s to stop", args[0], interval, abortKey)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				events, err := a.channel.Poll(args[0], true)
				if err != nil {
					log.Printf("poll failed: %v", err)
				} else if len(events) > 0 {
					if err := printEvents(events); err != nil {
						return err
					}
				}
				select {
				case <-stop:
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	watch.Flags().DurationVar(&interval, "interval", 10*time.Second, "poll interval")
	watch.Flags().StringVar(&abortKey, "abort-key", "ctrl+alt+q", "hotkey that stops watching")

	listContacts := &cobra.Command{
		Use:   "contacts",
		Short: "List configured contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range a.contacts.All() {
				mark := " "
				if a.contacts.IsEnabled(name) {
					mark = "*"
				}
				fmt.Printf("%s %s\n", mark, name)
			}
			return nil
		},
	}

	current := &cobra.Command{
		Use:   "current",
		Short: "Print the contact of the open conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.channel.CurrentContact()
			if err != nil {
				return err
			}
			fmt.Println(name)
			return nil
		},
	}

	checkNew := &cobra.Command{
		Use:   "check-new <contact>",
		Short: "Report whether a contact has unread messages (badge or changed area)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, err := a.channel.HasNewMessage(args[0])
			if err != nil {
				return err
			}
			fmt.Println(changed)
			return nil
		},
	}

	anchor := &cobra.Command{
		Use:   "anchor <contact>",
		Short: "Print the stored anchor hash for a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := a.channel.Anchor(args[0])
			if h == "" {
				fmt.Println("(none)")
				return nil
			}
			fmt.Println(h)
			return nil
		},
	}

	var keepBaseline bool
	resetAnchor := &cobra.Command{
		Use:   "reset-anchor <contact>",
		Short: "Forget a contact's anchor and visual baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keepBaseline {
				return a.channel.ClearAnchor(args[0])
			}
			return a.channel.ResetAnchor(args[0])
		},
	}
	resetAnchor.Flags().BoolVar(&keepBaseline, "keep-baseline", false,
		"drop only the anchor, keep the visual baseline")

	open := &cobra.Command{
		Use:   "open <contact>",
		Short: "Switch the window to a contact's conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.channel.Open(args[0])
		},
	}

	updateHash := &cobra.Command{
		Use:   "update-hash <contact>",
		Short: "Rebaseline a contact's visual fingerprint to the current screen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.channel.UpdateFingerprint(args[0])
		},
	}

	root.AddCommand(read, send, sendCurrent, sendFile, watch, listContacts,
		current, checkNew, anchor, resetAnchor, open, updateHash)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printEvents(events []channel.Event) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}
