// Command client is a terminal demo of the sync core: log in, watch the
// conversation list, open a conversation and chat.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"chatsync/internal/api"
	"chatsync/internal/models"
	"chatsync/internal/session"
	"chatsync/internal/utils"
)

func main() {
	if err := utils.LoadEnv(); err != nil {
		log.Println("Warning: .env file not found")
	}

	baseURL := utils.GetEnv("API_URL", "http://localhost:3001")
	wsURL := utils.GetEnv("WS_URL", "ws://localhost:3001/ws")

	if len(os.Args) < 3 {
		fmt.Println("usage: client <username> <password>")
		os.Exit(1)
	}
	username, password := os.Args[1], os.Args[2]

	ctx := context.Background()

	client := api.New(baseURL)
	login, err := client.Login(ctx, username, password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	sess := session.New(session.Config{
		APIBaseURL: baseURL,
		WSURL:      wsURL,
		Token:      login.Token,
		ViewerID:   login.UserID,
		ViewerName: login.UserName,
	})
	defer sess.Close()

	sess.OnError(func(msg string) {
		fmt.Printf("\n! channel error: %s\n> ", msg)
	})
	sess.OnInboxChange(func() {
		printInbox(sess, login.UserID)
	})

	if err := sess.Start(ctx); err != nil {
		log.Printf("push channel unavailable, REST only: %v", err)
	}

	printInbox(sess, login.UserID)
	fmt.Println("commands: /users, /open <conversation-id>, /new <user-id>, /quit")

	var view *session.ConversationView
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			return

		case line == "/users":
			users, err := client.ListUsers(ctx)
			if err != nil {
				fmt.Printf("users failed: %v\n", err)
				break
			}
			for _, u := range users {
				fmt.Printf("%-8s %-12s %s\n", u.ID, u.Name, u.Status)
			}

		case strings.HasPrefix(line, "/new "):
			otherID := strings.TrimSpace(strings.TrimPrefix(line, "/new "))
			conv, err := client.CreateConversation(ctx, api.CreateConversationRequest{
				Kind:      models.KindDirect,
				MemberIDs: []string{otherID},
			})
			if err != nil {
				fmt.Printf("create failed: %v\n", err)
				break
			}
			fmt.Printf("conversation %s ready\n", conv.ID)

		case strings.HasPrefix(line, "/open "):
			if view != nil {
				view.Close()
			}
			id := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
			v, err := sess.OpenConversation(ctx, id)
			if err != nil {
				fmt.Printf("open failed: %v\n", err)
				view = nil
				break
			}
			view = v
			view.OnMessages(func() { printMessages(v) })
			view.OnTyping(func() {
				for _, u := range v.TypingUsers() {
					fmt.Printf("  %s is typing...\n", u.UserName)
				}
			})
			view.MarkRead()
			printMessages(view)

		case line != "":
			if view == nil {
				fmt.Println("open a conversation first: /open <id>")
				break
			}
			view.InputActivity()
			view.Send(ctx, line)
		}
		fmt.Print("> ")
	}
}

func printInbox(sess *session.Session, viewerID string) {
	convs := sess.Inbox().Conversations()
	fmt.Printf("\n-- conversations (%d) --\n", len(convs))
	for _, c := range convs {
		marker := " "
		if c.UnreadCount > 0 {
			marker = fmt.Sprintf("%d", c.UnreadCount)
		}
		fmt.Printf("[%s] %-12s %-20s %s\n",
			marker, c.ID, c.Title(viewerID), c.Preview())
	}
}

func printMessages(v *session.ConversationView) {
	fmt.Println()
	for _, m := range v.Messages() {
		status := ""
		if m.SendError != "" {
			status = " [failed: " + m.SendError + "]"
		} else if m.IsSending {
			status = " [sending]"
		}
		fmt.Printf("%s %s: %s%s\n",
			models.RelativeTime(m.CreatedAt, time.Now()), m.SenderName, m.Body, status)
	}
	fmt.Print("> ")
}
