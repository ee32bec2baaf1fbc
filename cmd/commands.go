package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	adaptersaudio "github.com/satriahrh/narrator/server/adapters/audio"
	"github.com/satriahrh/narrator/server/domain/entities"
	"github.com/satriahrh/narrator/server/internal/audio"
	"github.com/satriahrh/narrator/server/internal/auth"
	"github.com/satriahrh/narrator/server/internal/websocket"
)

var (
	voiceFlag  string
	outputFlag string
	concatOut  string
	clientFlag string
	urlFlag    string
	tokenFlag  string
)

var sayCmd = &cobra.Command{
	Use:   "say [text...]",
	Short: "Synthesize text and write the provider's audio to a file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSay,
}

var concatCmd = &cobra.Command{
	Use:   "concat [files...]",
	Short: "Join audio files into one 16-bit WAV file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runConcat,
}

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the available voices",
	Args:  cobra.NoArgs,
	RunE:  runVoices,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token signed with JWT_SECRET",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

var clientCmd = &cobra.Command{
	Use:   "client [segments...]",
	Short: "Narrate segments through a running server's websocket endpoint",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClient,
}

func init() {
	sayCmd.Flags().StringVarP(&voiceFlag, "voice", "v", "", "voice name or provider id")
	sayCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "output file, - for stdout (default speech.<ext>)")

	concatCmd.Flags().StringVarP(&concatOut, "output", "o", "narration.wav", "output file, - for stdout")

	tokenCmd.Flags().StringVar(&clientFlag, "client", "", "client ID to put in the token")
	_ = tokenCmd.MarkFlagRequired("client")

	clientCmd.Flags().StringVar(&urlFlag, "url", "ws://localhost:8080/ws", "websocket endpoint")
	clientCmd.Flags().StringVar(&tokenFlag, "token", "", "API token (issued from JWT_SECRET when empty)")
	clientCmd.Flags().StringVarP(&voiceFlag, "voice", "v", "", "voice name or provider id")
	clientCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "output file, - for stdout (default narration.<ext>)")
}

func runSay(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	voice, err := entities.ParseVoice(voiceFlag)
	if err != nil {
		return err
	}

	textToSpeech, defaultVoice, err := newTextToSpeech(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	text := strings.Join(args, " ")
	result, err := textToSpeech.Generate(ctx, text, voice.OrDefault(defaultVoice))
	if err != nil {
		return err
	}

	output := outputOrDefault(outputFlag, "speech", result.Audio)
	if err := writeOutput(output, result.Audio); err != nil {
		return err
	}

	logger.Info("Speech saved",
		zap.String("output", output),
		zap.Int("totalBytes", len(result.Audio)),
		zap.Float64("audioLength", result.AudioLength))
	return nil
}

func runConcat(cmd *cobra.Command, args []string) error {
	buffers := make([][]byte, len(args))
	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		buffers[i] = data
	}

	joined, err := audio.Concat(cmd.Context(), adaptersaudio.NewDecoder(), buffers)
	if err != nil {
		return err
	}

	if err := writeOutput(concatOut, joined); err != nil {
		return err
	}

	if concatOut != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(joined), concatOut)
	}
	return nil
}

func runVoices(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tID")
	for _, voice := range entities.Voices() {
		name := voice.String()
		if voice == entities.DefaultVoice {
			name += " (default)"
		}
		fmt.Fprintf(w, "%s\t%s\n", name, voice.ID())
	}
	return w.Flush()
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}

	token, expiresAt, err := issuer.GenerateClientToken(clientFlag)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	logger.Debug("Token issued",
		zap.String("clientId", clientFlag),
		zap.Time("expiresAt", expiresAt))
	return nil
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	voice, err := entities.ParseVoice(voiceFlag)
	if err != nil {
		return err
	}

	token := tokenFlag
	if token == "" {
		issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
		if err != nil {
			return fmt.Errorf("no --token given and cannot issue one: %w", err)
		}
		if token, _, err = issuer.GenerateClientToken("narrator-cli"); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	client := websocket.NewNarrationClient(urlFlag, token, logger)
	result, err := client.Narrate(ctx, voice, args)
	if err != nil {
		return err
	}

	output := outputOrDefault(outputFlag, "narration", result.Audio)
	if err := writeOutput(output, result.Audio); err != nil {
		return err
	}

	logger.Info("Narration saved",
		zap.String("narrationId", result.Narration.ID),
		zap.String("output", output),
		zap.Float64("durationSeconds", result.Narration.DurationSeconds))
	return nil
}

// outputOrDefault names the output after the detected audio format when none was given
func outputOrDefault(output, base string, data []byte) string {
	if output != "" {
		return output
	}
	return base + "." + audio.DetectFormat(data).Extension()
}

func writeOutput(output string, data []byte) error {
	if output == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	return nil
}
