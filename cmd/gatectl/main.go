// gatectl is a small operator tool for poking a running gatekeeper server:
// liveness check, account registration, login and token operations.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mkarpov/gatekeeper/internal/cli"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: gatectl [-s server] <ping|register|login|refresh|logout>")
	flag.PrintDefaults()
}

func main() {
	server := flag.String("s", "http://localhost:8080", "server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	client := cli.NewClient(*server)
	reader := bufio.NewReader(os.Stdin)

	var err error
	switch flag.Arg(0) {
	case "ping":
		err = ping(ctx, client)
	case "register":
		err = register(ctx, client, reader)
	case "login":
		err = login(ctx, client, reader)
	case "refresh":
		err = refresh(ctx, client, reader)
	case "logout":
		err = logout(ctx, client, reader)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func ping(ctx context.Context, client *cli.Client) error {
	if err := client.Ping(ctx); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func register(ctx context.Context, client *cli.Client, reader *bufio.Reader) error {
	username, err := cli.GetSimpleText(reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}
	email, err := cli.GetSimpleText(reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := cli.GetPassword(os.Stdout)
	if err != nil {
		return err
	}

	tokens, err := client.Register(ctx, username, email, password)
	if err != nil {
		return err
	}

	fmt.Println("Registered.")
	printTokens(tokens)
	return nil
}

func login(ctx context.Context, client *cli.Client, reader *bufio.Reader) error {
	loginID, err := cli.GetSimpleText(reader, "Enter email or username", os.Stdout)
	if err != nil {
		return err
	}
	password, err := cli.GetPassword(os.Stdout)
	if err != nil {
		return err
	}

	tokens, err := client.Login(ctx, loginID, password)
	if err != nil {
		return err
	}

	fmt.Println("Logged in.")
	printTokens(tokens)
	return nil
}

func refresh(ctx context.Context, client *cli.Client, reader *bufio.Reader) error {
	secret, err := cli.GetSimpleText(reader, "Enter refresh token", os.Stdout)
	if err != nil {
		return err
	}

	tokens, err := client.Refresh(ctx, secret)
	if err != nil {
		return err
	}

	fmt.Println("Rotated.")
	printTokens(tokens)
	return nil
}

func logout(ctx context.Context, client *cli.Client, reader *bufio.Reader) error {
	secret, err := cli.GetSimpleText(reader, "Enter refresh token", os.Stdout)
	if err != nil {
		return err
	}

	if err := client.Logout(ctx, secret); err != nil {
		return err
	}

	fmt.Println("Logged out.")
	return nil
}

func printTokens(tokens *cli.Tokens) {
	fmt.Printf("access token:  %s\n", tokens.AccessToken)
	fmt.Printf("refresh token: %s\n", tokens.RefreshToken)
}
