package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/angeloszaimis/nutrition-proxy/internal/nutrition"
)

func estimateCmd() *cli.Command {
	return &cli.Command{
		Name:      "estimate",
		Usage:     "Estimate calories and macros for a food description",
		ArgsUsage: "<description>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			text := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return errors.New("a food description is required")
			}

			cfg, log, err := loadConfig(cmd, os.Stderr)
			if err != nil {
				return err
			}

			client, err := newUpstream(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to create upstream client: %w", err)
			}

			res, err := client.EstimateMacros(ctx, nutrition.TextQuery{Text: text})
			if err != nil {
				return fmt.Errorf("estimate failed: %w", err)
			}

			return printJSON(cmd, res)
		},
	}
}

func recognizeCmd() *cli.Command {
	return &cli.Command{
		Name:  "recognize",
		Usage: "Identify the food in a photo",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "path to the image",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "mime",
				Usage: "image MIME type (detected from the file contents when omitted)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			data, err := os.ReadFile(cmd.String("file"))
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			cfg, log, err := loadConfig(cmd, os.Stderr)
			if err != nil {
				return err
			}

			client, err := newUpstream(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to create upstream client: %w", err)
			}

			q := nutrition.ImageQuery{
				ImageData: base64.StdEncoding.EncodeToString(data),
				MIMEType:  imageMIMEType(cmd.String("mime"), data),
			}

			res, err := client.RecognizeImage(ctx, q)
			if err != nil {
				return fmt.Errorf("recognize failed: %w", err)
			}

			return printJSON(cmd, res)
		},
	}
}

func imageMIMEType(explicit string, data []byte) string {
	if explicit != "" {
		return explicit
	}

	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return detected
	}

	return nutrition.DefaultImageMIMEType
}

func printJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
