// Command fw is a CLI client for the fileward service.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ---- token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "fileward")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "fileward")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.Create(tokenPath())
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- http helpers ----

type client struct {
	base   string
	bearer string
	http   *http.Client
}

func (c *client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	return c.http.Do(req)
}

// doJSON sends an optional JSON body and decodes a JSON response into out.
func (c *client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	resp, err := c.do(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	var m struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&m)
	if m.Message == "" {
		m.Message = resp.Status
	}
	return fmt.Errorf("server: %s (%d)", m.Message, resp.StatusCode)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func authed(base string) *client {
	tok, err := loadToken()
	if err != nil {
		fail(err)
	}
	return &client{base: base, bearer: tok, http: &http.Client{}}
}

func usage() {
	fmt.Fprintf(os.Stderr, `fw CLI
Usage:
  fw -addr http://HOST:PORT <cmd> [args]

Commands:
  version
  register -u <username> -p <password>
  login    -u <username> -p <password>   (saves token)
  list
  upload   -file <path>
  download -id <uuid> -out <path>
  rm       -id <uuid>
  usage
  logout
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the fileward HTTP API.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("fw %s (%s)\n", version, buildDate)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		c := &client{base: *addr, http: &http.Client{}}
		var out map[string]string
		if err := c.doJSON(ctx, http.MethodPost, "/register",
			map[string]string{"username": *u, "password": *p}, &out); err != nil {
			fail(err)
		}
		printJSON(out)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		c := &client{base: *addr, http: &http.Client{}}
		var out struct {
			AccessToken string `json:"accessToken"`
			Username    string `json:"username"`
		}
		if err := c.doJSON(ctx, http.MethodPost, "/login",
			map[string]string{"username": *u, "password": *p}, &out); err != nil {
			fail(err)
		}
		// access tokens are short-lived; remember a conservative expiry
		if err := saveToken(out.AccessToken, time.Now().Add(15*time.Minute)); err != nil {
			fail(err)
		}
		fmt.Println("logged in as", out.Username)

	case "list":
		c := authed(*addr)
		var out []map[string]any
		if err := c.doJSON(ctx, http.MethodGet, "/files", nil, &out); err != nil {
			fail(err)
		}
		printJSON(out)

	case "upload":
		fs := flag.NewFlagSet("upload", flag.ExitOnError)
		path := fs.String("file", "", "file to upload")
		_ = fs.Parse(flag.Args()[1:])
		if *path == "" {
			fmt.Fprintln(os.Stderr, "need -file")
			os.Exit(1)
		}
		c := authed(*addr)
		out, err := uploadFile(ctx, c, *path)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "download":
		fs := flag.NewFlagSet("download", flag.ExitOnError)
		id := fs.String("id", "", "file id")
		out := fs.String("out", "", "output path")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" || *out == "" {
			fmt.Fprintln(os.Stderr, "need -id and -out")
			os.Exit(1)
		}
		c := authed(*addr)
		if err := downloadFile(ctx, c, *id, *out); err != nil {
			fail(err)
		}
		fmt.Println("saved to", *out)

	case "rm":
		fs := flag.NewFlagSet("rm", flag.ExitOnError)
		id := fs.String("id", "", "file id")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		c := authed(*addr)
		var out map[string]string
		if err := c.doJSON(ctx, http.MethodDelete, "/delete/"+*id, nil, &out); err != nil {
			fail(err)
		}
		printJSON(out)

	case "usage":
		c := authed(*addr)
		var out map[string]int64
		if err := c.doJSON(ctx, http.MethodGet, "/usage", nil, &out); err != nil {
			fail(err)
		}
		printJSON(out)

	case "logout":
		c := authed(*addr)
		if err := c.doJSON(ctx, http.MethodPost, "/logout", nil, nil); err != nil {
			fail(err)
		}
		_ = os.Remove(tokenPath())
		fmt.Println("logged out")

	default:
		usage()
	}
}

// uploadFile streams a local file as the multipart "file" field.
func uploadFile(ctx context.Context, c *client, path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	resp, err := c.do(ctx, http.MethodPost, "/upload", pr, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var out map[string]any
	return out, json.NewDecoder(resp.Body).Decode(&out)
}

func downloadFile(ctx context.Context, c *client, id, out string) error {
	resp, err := c.do(ctx, http.MethodGet, "/download/"+id, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}
