// Command fileshare sends and receives files through a fileshare server.
//
//	fileshare send <path>              upload a file and print its invite code
//	fileshare receive <code> [dir]     download a file into dir (default .)
//	fileshare status <owner-token>     show what happened to a sent file
//
// The server URL is taken from -server or FILESHARE_SERVER.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	fileshare "github.com/SuperSection/fileshare"
	"github.com/SuperSection/fileshare/client"
	"github.com/SuperSection/fileshare/disposition"
)

func main() {
	server := flag.String("server", envOr("FILESHARE_SERVER", "http://localhost:8080"), "fileshare server URL")
	wait := flag.Bool("wait", false, "after send, wait until the file is received")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = usage
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	c, err := client.New(*server, client.WithLogger(logger))
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "send":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		err = send(ctx, c, args[1], *wait)
	case "receive":
		if len(args) < 2 || len(args) > 3 {
			usage()
			os.Exit(2)
		}
		dir := "."
		if len(args) == 3 {
			dir = args[2]
		}
		err = receive(ctx, c, args[1], dir)
	case "status":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		err = status(ctx, c, args[1])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func send(ctx context.Context, c *client.Client, path string, wait bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}

	ticket, err := c.Upload(ctx, filepath.Base(path), info.Size(), f)
	if err != nil {
		return err
	}

	fmt.Printf("invite code:  %d\n", ticket.Code)
	fmt.Printf("expires at:   %s\n", ticket.ExpiresAt.Local().Format(time.RFC1123))
	fmt.Printf("owner token:  %s\n", ticket.OwnerToken)
	if !wait {
		return nil
	}

	fmt.Println("waiting for the receiver...")
	report, err := c.WaitFor(ctx, ticket.OwnerToken, time.Second)
	if err != nil {
		return err
	}
	return printReport(report)
}

func receive(ctx context.Context, c *client.Client, rawCode, dir string) error {
	code, err := client.ParseInviteCode(rawCode)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".fileshare-*.part")
	if err != nil {
		return err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	res, err := c.Download(ctx, code, tmp)
	if err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	dest, err := placeFile(tmp.Name(), dir, disposition.Sanitize(res.Filename))
	if err != nil {
		return err
	}
	fmt.Printf("saved %s (%d bytes)\n", dest, res.Size)
	return nil
}

// placeFile moves src to dir/name, or dir/name (n) when that path is taken. Each
// candidate is claimed with a hard link, which fails instead of replacing a file that
// appeared since the last attempt.
func placeFile(src, dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(dir, name)
	for i := 1; i < 1000; i++ {
		err := os.Link(src, candidate)
		if err == nil {
			if err := os.Remove(src); err != nil {
				return "", err
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}

func status(ctx context.Context, c *client.Client, token string) error {
	report, err := c.Status(ctx, token)
	if err != nil {
		return err
	}
	return printReport(report)
}

func printReport(r *fileshare.StatusReport) error {
	fmt.Printf("file:       %s\n", r.Filename)
	fmt.Printf("code:       %d\n", r.Code)
	fmt.Printf("state:      %s\n", r.State)
	fmt.Printf("delivered:  %d of %d bytes\n", r.Delivered, r.Size)
	if !r.FinishedAt.IsZero() {
		fmt.Printf("finished:   %s\n", r.FinishedAt.Local().Format(time.RFC1123))
	}
	return r.Err()
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "usage:")
	fmt.Fprintln(out, "  fileshare [flags] send <path>")
	fmt.Fprintln(out, "  fileshare [flags] receive <code> [dir]")
	fmt.Fprintln(out, "  fileshare [flags] status <owner-token>")
	fmt.Fprintln(out)
	flag.PrintDefaults()
}

func fatal(err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, fileshare.ErrNotFound):
		msg = "no file is waiting under that code (it may have been received or expired)"
	case errors.Is(err, fileshare.ErrInvalidInput):
		msg = "invalid input: " + msg
	case errors.Is(err, fileshare.ErrFetchRateLimited), errors.Is(err, fileshare.ErrUploadRateLimited):
		msg = "too many attempts, try again in a minute"
	}
	fmt.Fprintln(os.Stderr, "fileshare:", msg)
	os.Exit(1)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
