// Package main provides a command line tool that mints operator bearer
// tokens for the GIOŚ status endpoint.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/breatheroute/gios/internal/auth"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	var (
		secret, subject, issuer, audience string
		ttl                               time.Duration
	)

	return &cli.App{
		Name:      "gios-token",
		Usage:     "mint a bearer token for /v1/ops/status",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "secret",
				Usage:       "HS256 signing secret",
				EnvVars:     []string{"API_TOKEN_SECRET"},
				Required:    true,
				Destination: &secret,
			},
			&cli.StringFlag{
				Name:        "subject",
				Aliases:     []string{"sub"},
				Usage:       "operator the token is issued to",
				Required:    true,
				Destination: &subject,
			},
			&cli.DurationFlag{
				Name:        "ttl",
				Value:       auth.DefaultTokenTTL,
				Usage:       "token lifetime",
				Destination: &ttl,
			},
			&cli.StringFlag{
				Name:        "issuer",
				Value:       auth.DefaultIssuer,
				Destination: &issuer,
			},
			&cli.StringFlag{
				Name:        "audience",
				Value:       auth.DefaultAudience,
				Destination: &audience,
			},
		},
		Action: func(c *cli.Context) error {
			tokens, err := auth.NewTokenService(auth.TokenConfig{
				Secret:   secret,
				Issuer:   issuer,
				Audience: audience,
				TTL:      ttl,
			})
			if err != nil {
				return err
			}

			token, expiresAt, err := tokens.Generate(subject)
			if err != nil {
				return err
			}

			fmt.Fprintln(c.App.Writer, token)
			fmt.Fprintf(c.App.ErrWriter, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
}
