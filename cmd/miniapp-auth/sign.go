package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	auth "github.com/goliatone/go-miniapp-auth"
	"github.com/peterbourgon/ff/v3/ffcli"
)

type signOptions struct {
	botToken string
	user     string
	authDate int64
	extra    string
}

func newSignCommand(out io.Writer) *ffcli.Command {
	fs := flag.NewFlagSet("sign-initdata", flag.ExitOnError)
	opts := &signOptions{}
	fs.StringVar(&opts.botToken, "bot-token", "", "bot token used to sign")
	fs.StringVar(&opts.user, "user", `{"id":42,"first_name":"Dev"}`, "user JSON object")
	fs.Int64Var(&opts.authDate, "auth-date", 0, "auth_date unix seconds, defaults to now")
	fs.StringVar(&opts.extra, "extra", "", "extra fields as k=v pairs separated by &")

	return &ffcli.Command{
		Name:       "sign-initdata",
		ShortUsage: "miniapp-auth sign-initdata [flags]",
		ShortHelp:  "print a signed init data string for local testing",
		FlagSet:    fs,
		Exec: func(_ context.Context, _ []string) error {
			raw, err := signInitData(opts, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, raw)
			return err
		},
	}
}

func signInitData(opts *signOptions, now time.Time) (string, error) {
	if opts.botToken == "" {
		return "", errors.New("bot-token is required")
	}

	fields := map[string]string{}
	if opts.extra != "" {
		for _, pair := range strings.Split(opts.extra, "&") {
			k, v, ok := strings.Cut(pair, "=")
			if !ok || k == "" {
				return "", fmt.Errorf("invalid extra field %q", pair)
			}
			fields[k] = v
		}
	}

	if opts.user != "" {
		fields[auth.FieldUser] = opts.user
	}

	authDate := opts.authDate
	if authDate == 0 {
		authDate = now.Unix()
	}
	fields[auth.FieldAuthDate] = strconv.FormatInt(authDate, 10)

	return auth.SignInitData(opts.botToken, fields), nil
}
