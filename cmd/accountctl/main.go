// Command accountctl talks to the account server.
//
//	accountctl [-a addr] [-token T] register | login | fetch HANDLE | delete HANDLE | count | status | migrate
//
// register and login prompt for their fields; login prints the token to pass
// as -token (or ACCOUNTS_TOKEN) to the other commands.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/client"
	gs "github.com/dmitrijs2005/gophaccounts/internal/server/grpc"
)

type accountsClient interface {
	Register(ctx context.Context, req *gs.RegisterRequest) (*gs.Account, error)
	Login(ctx context.Context, email, password string) (*gs.AuthenticateResponse, error)
	Fetch(ctx context.Context, handle string) (*gs.Account, error)
	Delete(ctx context.Context, handle string) (*gs.Account, error)
	Count(ctx context.Context) (int64, error)
	MigrationStatus(ctx context.Context) (*gs.MigrationStatusResponse, error)
	Migrate(ctx context.Context) (*gs.MigrateResponse, error)
	SetToken(token string)
}

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p prompter) text(prompt string) (string, error) {
	return client.GetSimpleText(p.in, prompt, p.out)
}

func (p prompter) password() (string, error) {
	return client.GetPassword(p.in, p.out)
}

func run(ctx context.Context, args []string, token string, c accountsClient, p prompter) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given")
	}
	if token != "" {
		c.SetToken(token)
	}

	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")

	handleArg := func() (string, error) {
		if len(args) < 2 {
			return "", fmt.Errorf("%s needs a handle", args[0])
		}
		return args[1], nil
	}

	switch args[0] {
	case "register":
		email, err := p.text("Email")
		if err != nil {
			return err
		}
		handle, err := p.text("Handle (empty to derive from name)")
		if err != nil {
			return err
		}
		var name string
		if handle == "" {
			if name, err = p.text("Display name"); err != nil {
				return err
			}
		}
		pw, err := p.password()
		if err != nil {
			return err
		}
		a, err := c.Register(ctx, &gs.RegisterRequest{Handle: handle, DisplayName: name, Email: email, Password: pw})
		if err != nil {
			return err
		}
		return enc.Encode(a)

	case "login":
		email, err := p.text("Email")
		if err != nil {
			return err
		}
		pw, err := p.password()
		if err != nil {
			return err
		}
		res, err := c.Login(ctx, email, pw)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.out, res.Token)
		return err

	case "fetch":
		h, err := handleArg()
		if err != nil {
			return err
		}
		a, err := c.Fetch(ctx, h)
		if err != nil {
			return err
		}
		return enc.Encode(a)

	case "delete":
		h, err := handleArg()
		if err != nil {
			return err
		}
		a, err := c.Delete(ctx, h)
		if err != nil {
			return err
		}
		return enc.Encode(a)

	case "count":
		n, err := c.Count(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.out, n)
		return err

	case "status":
		st, err := c.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		return enc.Encode(st)

	case "migrate":
		r, err := c.Migrate(ctx)
		if err != nil {
			return err
		}
		return enc.Encode(r)

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func main() {
	addr := flag.String("a", "localhost:50051", "server address")
	token := flag.String("token", os.Getenv("ACCOUNTS_TOKEN"), "access token")
	flag.Parse()

	c, err := client.NewGRPCClient(*addr)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p := prompter{in: bufio.NewReader(os.Stdin), out: os.Stdout}
	if err := run(ctx, flag.Args(), *token, c, p); err != nil {
		log.Printf("%v", err)
		cancel()
		os.Exit(1)
	}
}
