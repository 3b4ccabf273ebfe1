// StudyBuddy CLI - Command line client for encrypted study-partner chat
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Ashifo7/StudyBuddy/clients/go/studybuddy"
	"github.com/Ashifo7/StudyBuddy/internal/models"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("STUDYBUDDY_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	ctx := context.Background()
	client := studybuddy.NewClient(baseURL)
	keys := studybuddy.NewKeyStore(client.ConfigDir, client)
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health(ctx)
		exitOnError(err)
		printJSON(resp)

	case "register":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: studybuddy register <name> [email]")
			os.Exit(1)
		}
		email := ""
		if len(os.Args) > 3 {
			email = os.Args[3]
		}
		resp, err := client.Register(ctx, os.Args[2], email)
		exitOnError(err)
		exitOnError(keys.EnsureKeypair(ctx))
		fmt.Printf("Registered as: %s\n", resp.ID)

	case "send":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: studybuddy send <receiver_id> <conversation_id> <message>")
			os.Exit(1)
		}
		receiverID, conversationID := os.Args[2], os.Args[3]

		exitOnError(keys.EnsureKeypair(ctx))
		myPub, _ := keys.PublicKeyB64()
		theirPub, err := client.GetPublicKey(ctx, receiverID)
		exitOnError(err)
		if theirPub == "" {
			fmt.Fprintln(os.Stderr, "Error: receiver has not published a public key")
			os.Exit(1)
		}

		env, err := studybuddy.Encode(os.Args[4], myPub, theirPub)
		exitOnError(err)
		env.ConversationID = conversationID
		env.SenderID = client.UserID
		env.ReceiverID = receiverID

		stored, err := client.SendMessage(ctx, env)
		exitOnError(err)
		fmt.Printf("Sent: %s\n", stored.ID)

	case "read":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: studybuddy read <conversation_id>")
			os.Exit(1)
		}
		priv, ok := keys.PrivateKey()
		if !ok {
			fmt.Fprintln(os.Stderr, "Error: no keypair; run register first")
			os.Exit(1)
		}
		envelopes, err := client.ListMessages(ctx, os.Args[2])
		exitOnError(err)

		cache := studybuddy.NewSessionCache(client.UserID, priv)
		for _, msg := range cache.LoadHistory(os.Args[2], envelopes) {
			printMessage(msg)
		}

	case "listen":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: studybuddy listen <conversation_id>")
			os.Exit(1)
		}
		conversationID := os.Args[2]
		priv, ok := keys.PrivateKey()
		if !ok {
			fmt.Fprintln(os.Stderr, "Error: no keypair; run register first")
			os.Exit(1)
		}
		cache := studybuddy.NewSessionCache(client.UserID, priv)

		sock, err := client.Dial(ctx, studybuddy.SocketHandlers{
			OnDeliver: func(env *models.Envelope) {
				if env.ConversationID != conversationID {
					return
				}
				cache.AddLive(env)
				if msgs, ok := cache.Conversation(conversationID); ok && len(msgs) > 0 {
					printMessage(msgs[len(msgs)-1])
				}
			},
			OnReject: func(reason string) {
				fmt.Fprintf(os.Stderr, "rejected: %s\n", reason)
			},
			OnStatus: func(userID, status string) {
				fmt.Printf("* %s is %s\n", userID, status)
			},
		})
		exitOnError(err)
		defer sock.Close()

		envelopes, err := client.ListMessages(ctx, conversationID)
		exitOnError(err)
		for _, msg := range cache.LoadHistory(conversationID, envelopes) {
			printMessage(msg)
		}

		<-sock.Done()

	case "who":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: studybuddy who <user_id>")
			os.Exit(1)
		}
		pub, err := client.GetPublicKey(ctx, os.Args[2])
		exitOnError(err)
		if pub == "" {
			fmt.Println("No public key published")
		} else {
			fmt.Println(pub)
		}

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func printMessage(msg studybuddy.DecryptedMessage) {
	ts := time.UnixMilli(msg.SentAt).Format("2006-01-02 15:04:05")
	from := msg.SenderID
	if len(from) > 8 {
		from = from[:8]
	}
	body := msg.Text
	if msg.Undecryptable {
		body = "[message could not be decrypted]"
	}
	fmt.Printf("[%s] %s: %s\n", ts, from, body)
}

func usage() {
	fmt.Println(`StudyBuddy CLI - encrypted study-partner chat

Usage: studybuddy <command> [options]

Commands:
  register <name> [email]                Register and provision a keypair
  send <receiver> <conversation> <msg>   Encrypt and send a message
  read <conversation>                    Read a conversation
  listen <conversation>                  Follow a conversation live
  who <user_id>                          Look up a user's public key
  health                                 Check server health

Environment:
  STUDYBUDDY_URL      Server URL (default: http://localhost:8080)
  STUDYBUDDY_CONFIG   Config directory (default: ~/.studybuddy)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
