// inbox_watcher watches a local directory and submits every new file to the
// document intake endpoint as a translation request.
//
// Usage:
//
//	inbox_watcher -dir ./inbox -url http://localhost:8080 -token <jwt> -project <id> -lang nl
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

func main() {
	dir := flag.String("dir", "inbox", "directory to watch for new documents")
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	token := flag.String("token", "", "bearer token for the intake endpoint")
	project := flag.String("project", "", "project id to file documents under")
	lang := flag.String("lang", "nl", "target language for translation")
	flag.Parse()

	if *token == "" || *project == "" {
		log.Fatal("both -token and -project are required")
	}
	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatalf("create watch dir: %v", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("create watcher: %v", err)
	}
	defer watcher.Close()
	if err := watcher.Add(*dir); err != nil {
		log.Fatalf("watch %s: %v", *dir, err)
	}
	log.Printf("watching %s, submitting to %s", *dir, *baseURL)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			// Give the writer a moment to finish before reading.
			time.Sleep(200 * time.Millisecond)
			if err := submit(*baseURL, *token, *project, *lang, event.Name); err != nil {
				log.Printf("submit %s: %v", event.Name, err)
				continue
			}
			log.Printf("submitted %s", event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watch error: %v", err)
		}
	}
}

func submit(baseURL, token, project, lang, path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("not a regular file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("name", name)
	_ = w.WriteField("kind", "translation")
	_ = w.WriteField("project_id", project)
	_ = w.WriteField("target_language", lang)
	part, err := w.CreateFormFile("original_file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(baseURL, "/")+"/documents", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 400))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
