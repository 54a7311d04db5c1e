// rhwatch follows the Fale com RH realtime channel from a terminal and
// prints bell notifications as they arrive.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rh-portal-be/internal/logger"
	"rh-portal-be/internal/notifications"
	"rh-portal-be/internal/realtime"
	"rh-portal-be/internal/rhclient"
)

var (
	baseURL  string
	token    string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "rhwatch",
	Short: "Watch Fale com RH notifications",
	Long: `rhwatch keeps a realtime connection to the portal API and prints
every notification and followed conversation event.

Examples:
  RH_TOKEN=$(rhwatch login --login M0021 --password ...) rhwatch watch
  rhwatch watch --join 0b6c...`,
	SilenceUsage: true,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Print an access token for the given credentials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		login, _ := cmd.Flags().GetString("login")
		password, _ := cmd.Flags().GetString("password")

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		hc := rhclient.NewHTTPClient(baseURL)
		defer hc.Close()
		tok, err := rhclient.Login(ctx, hc, login, password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream notifications until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if token == "" {
			return errors.New("a token is required (--token or RH_TOKEN)")
		}
		join, _ := cmd.Flags().GetStringSlice("join")
		capacity, _ := cmd.Flags().GetInt("keep")

		log, err := logger.New(logLevel, "console")
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		client := rhclient.New(rhclient.Config{BaseURL: baseURL, Token: token, KeepNotifications: capacity}, log)
		center := client.Notifications()

		center.Subscribe(func(count int) {
			list := center.List()
			if count == 0 || len(list) == 0 {
				return
			}
			last := list[len(list)-1]
			fmt.Fprintf(out, "[%d] %s %s: %s\n", count, last.CreatedAt.Local().Format("15:04"), last.From, last.Preview)
		})
		client.OnMessage(func(m realtime.MessagePayload) {
			if m.Message == nil {
				return
			}
			fmt.Fprintf(out, "%s <%s> %s\n", m.ConversationID, m.Message.SenderRole, m.Message.Content)
		})
		client.OnUpdate(func(u realtime.UpdatePayload) {
			if status, ok := u.Patch["status"]; ok {
				fmt.Fprintf(out, "%s is now %v\n", u.ConversationID, status)
			}
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		for _, id := range join {
			if err := client.Join(ctx, id); err != nil {
				return err
			}
		}

		err = client.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", envOr("RH_URL", "http://localhost:8084"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level")

	loginCmd.Flags().String("login", "", "Matricula or e-mail")
	loginCmd.Flags().String("password", "", "Password")
	_ = loginCmd.MarkFlagRequired("login")
	_ = loginCmd.MarkFlagRequired("password")

	watchCmd.Flags().StringVar(&token, "token", os.Getenv("RH_TOKEN"), "Access token")
	watchCmd.Flags().StringSlice("join", nil, "Conversation ids to follow")
	watchCmd.Flags().Int("keep", notifications.DefaultCapacity, "Notifications kept in memory")

	rootCmd.AddCommand(loginCmd, watchCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
