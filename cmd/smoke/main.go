// smoke exercises a running orggate instance end to end: login, scoped
// record fetch, logout, and rejection of the revoked token.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("ORGGATE_ADDR")
	if base == "" {
		base = "http://localhost:8080"
	}
	email := os.Getenv("ORGGATE_SMOKE_EMAIL")
	if email == "" {
		email = "demo@example.com"
	}
	password := os.Getenv("ORGGATE_SMOKE_PASSWORD")
	if password == "" {
		log.Fatal("ORGGATE_SMOKE_PASSWORD is required")
	}

	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(base + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		log.Fatalf("healthz: %v (status %v)", err, status(resp))
	}
	resp.Body.Close()

	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err = client.Post(base+"/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("login: status %d", resp.StatusCode)
	}
	var login struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		log.Fatalf("decode login: %v", err)
	}
	resp.Body.Close()

	records, err := get(client, base+"/v1/records", login.Token)
	if err != nil {
		log.Fatalf("records: %v", err)
	}
	if records.StatusCode != http.StatusOK {
		log.Fatalf("records: status %d", records.StatusCode)
	}
	var page struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(records.Body).Decode(&page); err != nil {
		log.Fatalf("decode records: %v", err)
	}
	records.Body.Close()

	req, _ := http.NewRequest(http.MethodPost, base+"/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, err = client.Do(req)
	if err != nil || resp.StatusCode != http.StatusNoContent {
		log.Fatalf("logout: %v (status %v)", err, status(resp))
	}
	resp.Body.Close()

	revoked, err := get(client, base+"/v1/records", login.Token)
	if err != nil {
		log.Fatalf("records after logout: %v", err)
	}
	revoked.Body.Close()
	if revoked.StatusCode != http.StatusUnauthorized {
		log.Fatalf("revoked token still accepted: status %d", revoked.StatusCode)
	}

	fmt.Printf("smoke test passed: role=%s records=%d\n", login.Role, page.Count)
}

func get(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}

func status(resp *http.Response) any {
	if resp == nil {
		return "n/a"
	}
	return resp.StatusCode
}
