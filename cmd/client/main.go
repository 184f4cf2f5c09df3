// Package main is the driver agent: a small terminal client for the
// Driver Tasks Hub that keeps working offline. Mutations made without
// connectivity land in a local queue and replay on reconnect; the
// visitor identity is kept in a local file and reconciled against the
// server.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eyetask/driverhub/internal/cache"
	"github.com/eyetask/driverhub/internal/client/api"
	"github.com/eyetask/driverhub/internal/client/queue"
	"github.com/eyetask/driverhub/internal/client/visitor"
	"github.com/eyetask/driverhub/internal/models"
)

var (
	version   string
	buildDate string
)

// repl runs the interactive shell loop.
func repl(client *api.Client, q *queue.Queue, tracker *visitor.Tracker) {
	ctx := context.Background()
	tracker.StartAutoReconcile(ctx)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("driverhub> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Println("Available commands: help, login <user> <pass>, tasks, projects, " +
				"addtask <project-id> <title...>, register <name>, whoami, visit, " +
				"sync, status, pending, dead, offline, online, exit")

		case "login":
			if len(args) != 3 {
				fmt.Println("usage: login <user> <pass>")
				continue
			}
			if err := client.Login(ctx, args[1], args[2]); err != nil {
				fmt.Println("login failed:", err)
				continue
			}
			fmt.Println("logged in")

		case "tasks":
			var tasks []models.Task
			if err := client.GetJSON(ctx, "/api/tasks", &tasks); err != nil {
				fmt.Println("error:", err)
				continue
			}
			for _, t := range tasks {
				fmt.Printf("%s  [p%d]  %s\n", t.ID, t.Priority, t.Title)
			}

		case "projects":
			var projects []models.Project
			if err := client.GetJSON(ctx, "/api/projects", &projects); err != nil {
				fmt.Println("error:", err)
				continue
			}
			for _, p := range projects {
				fmt.Printf("%s  %s\n", p.ID, p.Name)
			}

		case "addtask":
			if len(args) < 3 {
				fmt.Println("usage: addtask <project-id> <title...>")
				continue
			}
			body, err := json.Marshal(map[string]any{
				"projectId": args[1],
				"title":     strings.Join(args[2:], " "),
			})
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			resp, err := client.Do(ctx, http.MethodPost, "/api/tasks", body)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusAccepted {
				fmt.Println("offline: task queued for replay")
			} else {
				fmt.Println("task created")
			}

		case "register":
			if len(args) < 2 {
				fmt.Println("usage: register <name>")
				continue
			}
			if err := tracker.Register(ctx, strings.Join(args[1:], " ")); err != nil {
				fmt.Println("register failed:", err)
				continue
			}
			fmt.Println("registered")

		case "whoami":
			st := tracker.Current()
			fmt.Printf("visitor %s session %s\n", st.VisitorID, tracker.SessionID())
			if st.IsRegistered {
				fmt.Println("registered as:", st.Name)
			} else {
				fmt.Println("not registered")
			}

		case "visit":
			if err := client.LogVisit(ctx, tracker.VisitorID()); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("visit logged")

		case "sync":
			res, err := q.Sync(ctx)
			if err != nil {
				fmt.Println("sync failed:", err)
				continue
			}
			fmt.Printf("attempted=%d replayed=%d failed=%d dead=%d\n",
				res.Attempted, res.Replayed, res.Failed, res.DeadLettered)
			if err := tracker.Reconcile(ctx); err != nil {
				fmt.Println("reconcile failed:", err)
			}

		case "status":
			st, err := client.Status()
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			mode := "online"
			if !st.Online {
				mode = "offline"
			}
			fmt.Printf("%s  cached responses=%d  pending=%d  dead=%d\n",
				mode, st.CachedResponses, st.PendingRequests, st.DeadLetters)

		case "pending":
			printRequests(q.Pending())

		case "dead":
			printRequests(q.DeadLetters())

		case "offline":
			q.SetOnline(false)
			fmt.Println("now offline: mutations will queue")

		case "online":
			q.SetOnline(true)
			fmt.Println("now online: queue will flush")

		case "exit":
			return

		default:
			fmt.Println("unknown command:", args[0])
		}
	}
}

func printRequests(requests []queue.Request, err error) {
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if len(requests) == 0 {
		fmt.Println("(empty)")
		return
	}
	for _, r := range requests {
		fmt.Printf("%s  %s %s  retries=%d", r.ID, r.Method, r.URL, r.RetryCount)
		if r.LastError != "" {
			fmt.Printf("  last error: %s", r.LastError)
		}
		fmt.Println()
	}
}

func main() {
	baseURL := flag.String("server", "http://localhost:8080", "hub server base URL")
	dataDir := flag.String("data", defaultDataDir(), "local state directory")
	flag.Parse()

	fmt.Printf("driverhub agent %s (%s)\n", version, buildDate)

	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := os.MkdirAll(*dataDir, 0o750); err != nil {
		log.Fatalf("create data dir: %v", err)
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}

	q, err := queue.Open(filepath.Join(*dataDir, "queue"), httpClient, zapLogger)
	if err != nil {
		log.Fatalf("open offline queue: %v", err)
	}
	defer q.Close()

	readCache := cache.New(zapLogger)
	defer readCache.Close()

	client := api.New(*baseURL, httpClient, q, readCache, zapLogger)

	tracker, err := visitor.New(filepath.Join(*dataDir, "visitor.json"), client, zapLogger)
	if err != nil {
		log.Fatalf("init visitor identity: %v", err)
	}

	repl(client, q, tracker)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".driverhub"
	}
	return filepath.Join(home, ".driverhub")
}
