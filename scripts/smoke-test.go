package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Smoke test for a running migration worker: logs in, dispatches a
// theme migration batch and checks the health endpoint.

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type taskRequest struct {
	IDs []uint `json:"ids"`
}

type taskResponse struct {
	Task     string `json:"task"`
	Accepted int    `json:"accepted"`
}

func main() {
	var (
		baseURL  string
		email    string
		password string
		rawIDs   string
	)
	flag.StringVar(&baseURL, "url", "http://localhost:8082", "Worker base URL")
	flag.StringVar(&email, "email", "admin@addonhub.local", "Admin email")
	flag.StringVar(&password, "password", "", "Admin password")
	flag.StringVar(&rawIDs, "ids", "", "Comma-separated legacy theme ids to migrate")
	flag.Parse()

	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}
	if password == "" {
		fmt.Fprintln(os.Stderr, "admin password required (-password or ADMIN_PASSWORD)")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Println("==> Checking health")
	if err := checkHealth(client, baseURL); err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("    healthy")

	fmt.Println("==> Logging in")
	token, err := login(client, baseURL, email, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("    got token")

	if rawIDs == "" {
		fmt.Println("==> No ids given, skipping task dispatch")
		return
	}

	ids, err := parseIDs(rawIDs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -ids: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("==> Dispatching theme migration for %d ids\n", len(ids))
	accepted, err := dispatch(client, baseURL, token, ids)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dispatch failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("    accepted %d ids\n", accepted)
}

func checkHealth(client *http.Client, baseURL string) error {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func login(client *http.Client, baseURL, email, password string) (string, error) {
	payload, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}

	resp, err := client.Post(baseURL+"/api/v1/auth/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var out loginResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("empty token in response")
	}
	return out.Token, nil
}

func dispatch(client *http.Client, baseURL, token string, ids []uint) (int, error) {
	payload, err := json.Marshal(taskRequest{IDs: ids})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/tasks/theme-migrations", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusAccepted {
		return 0, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var out taskResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, err
	}
	return out.Accepted, nil
}

func parseIDs(raw string) ([]uint, error) {
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", part, err)
		}
		ids = append(ids, uint(id))
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no ids")
	}
	return ids, nil
}
