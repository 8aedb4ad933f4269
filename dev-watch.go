//go:build ignore

package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

func main() {
	fmt.Println("Registration Gateway hot reload")
	fmt.Println("Watching for file changes...")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatal(err)
	}
	defer watcher.Close()

	dirs := []string{".", "internal", "internal/handlers", "internal/services", "internal/models", "internal/kafka", "internal/logger", "internal/middleware", "internal/config", "internal/storage", "internal/redis", "internal/utils"}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); err == nil {
			if err := watcher.Add(dir); err != nil {
				log.Printf("Error watching %s: %v", dir, err)
			} else {
				fmt.Printf("Watching: %s\n", dir)
			}
		}
	}

	var cmd *exec.Cmd
	restart := make(chan bool, 1)

	go startApp(&cmd, restart)

	restart <- true

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if strings.HasSuffix(event.Name, ".go") && (event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create) {
				fmt.Printf("File changed: %s\n", filepath.Base(event.Name))
				fmt.Println("Rebuilding and restarting...")

				if cmd != nil && cmd.Process != nil {
					cmd.Process.Kill()
				}

				time.Sleep(500 * time.Millisecond)
				restart <- true
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Println("Error:", err)
		}
	}
}

func startApp(cmd **exec.Cmd, restart <-chan bool) {
	for range restart {
		fmt.Println("Building application...")
		buildCmd := exec.Command("go", "build", "-o", "registration-gateway", ".")
		buildCmd.Stdout = os.Stdout
		buildCmd.Stderr = os.Stderr

		if err := buildCmd.Run(); err != nil {
			fmt.Printf("Build failed: %v\n", err)
			continue
		}

		fmt.Println("Starting Registration Gateway...")
		fmt.Println(strings.Repeat("=", 50))

		*cmd = exec.Command("./registration-gateway")
		(*cmd).Stdout = os.Stdout
		(*cmd).Stderr = os.Stderr

		if err := (*cmd).Start(); err != nil {
			fmt.Printf("Failed to start: %v\n", err)
			continue
		}

		go func() {
			(*cmd).Wait()
		}()
	}
}
