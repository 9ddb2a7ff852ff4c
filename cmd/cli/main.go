package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"aur-admin-data/internal/entity"
	"aur-admin-data/internal/model"

	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "aur-admin",
		Usage: "query and change admin data through the admin server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "admin server address",
				Value:   "http://localhost:8080",
				Sources: cli.EnvVars("AUR_ADMIN_ADDR"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "request timeout",
				Value: 15 * time.Second,
			},
			&cli.StringFlag{
				Name:  "select",
				Usage: "gjson path applied to the response, e.g. list.#.name",
			},
		},
		Commands: []*cli.Command{
			listCommand("dishes", "list dishes", "/api/dishes"),
			listCommand("reviews", "list reviews", "/api/reviews"),
			listCommand("tags", "list tags", "/api/tags"),
			listCommand("restaurants", "list restaurants", "/api/restaurants"),
			dishCommand(),
			saveDishCommand("create-dish", "create a dish from a JSON file", http.MethodPost),
			saveDishCommand("update-dish", "update a dish from a JSON file", http.MethodPut),
			reviewStatusCommand(),
			{
				Name:  "cache",
				Usage: "show cached queries",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					data, err := client(cmd).get(ctx, "/api/cache/entries", nil)
					return output(cmd, data, err)
				},
			},
			{
				Name:      "invalidate",
				Usage:     "mark every cached query of an entity stale",
				ArgsUsage: "<entity>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name, err := entity.Parse(cmd.Args().First())
					if err != nil {
						return err
					}
					data, err := client(cmd).send(ctx, http.MethodPost, "/api/cache/invalidate/"+url.PathEscape(string(name)), nil)
					return output(cmd, data, err)
				},
			},
		},
	}
}

func client(cmd *cli.Command) *apiClient {
	return newAPIClient(cmd.String("addr"), cmd.Duration("timeout"))
}

// output pretty prints data, narrowed by --select when given.
func output(cmd *cli.Command, data []byte, err error) error {
	if err != nil {
		return err
	}
	w := cmd.Root().Writer
	if w == nil {
		w = os.Stdout
	}

	if path := cmd.String("select"); path != "" {
		res := gjson.GetBytes(data, path)
		if !res.Exists() {
			return fmt.Errorf("nothing at %q", path)
		}
		data = []byte(res.Raw)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		_, werr := w.Write(data)
		return werr
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(w)
	return err
}

func listFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "offset", Value: 0},
		&cli.IntFlag{Name: "limit", Value: 10},
		&cli.StringFlag{Name: "search"},
	}
}

func listCommand(name, usage, path string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: listFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			params := url.Values{}
			params.Set("offset", strconv.Itoa(cmd.Int("offset")))
			params.Set("limit", strconv.Itoa(cmd.Int("limit")))
			if s := cmd.String("search"); s != "" {
				params.Set("search", s)
			}
			data, err := client(cmd).get(ctx, path, params)
			return output(cmd, data, err)
		},
	}
}

func dishCommand() *cli.Command {
	return &cli.Command{
		Name:      "dish",
		Usage:     "show one dish with its restaurant variations",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := strconv.ParseInt(cmd.Args().First(), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("dish id must be a positive number, got %q", cmd.Args().First())
			}
			data, err := client(cmd).get(ctx, "/api/dishes/"+strconv.FormatInt(id, 10), nil)
			return output(cmd, data, err)
		},
	}
}

func saveDishCommand(name, usage, method string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Usage: "dish JSON, - for stdin", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			raw, err := readInput(cmd, cmd.String("file"))
			if err != nil {
				return err
			}
			var in model.DishInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return fmt.Errorf("invalid dish JSON: %w", err)
			}
			data, err := client(cmd).send(ctx, method, "/api/dishes", in)
			return output(cmd, data, err)
		},
	}
}

func reviewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "review-status",
		Usage: "change the status of a review",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "user", Required: true},
			&cli.IntFlag{Name: "review", Required: true},
			&cli.StringFlag{Name: "status", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			change := model.ReviewStatusChange{
				UserID:   int64(cmd.Int("user")),
				ReviewID: int64(cmd.Int("review")),
				Status:   cmd.String("status"),
			}
			data, err := client(cmd).send(ctx, http.MethodPost, "/api/reviews/status", change)
			return output(cmd, data, err)
		},
	}
}

func readInput(cmd *cli.Command, path string) ([]byte, error) {
	if path == "-" {
		r := cmd.Root().Reader
		if r == nil {
			r = os.Stdin
		}
		return io.ReadAll(r)
	}
	return os.ReadFile(path)
}
