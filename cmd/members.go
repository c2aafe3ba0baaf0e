package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/store"
)

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Inspect and enroll members",
}

var membersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all members",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store.Store) error {
			members, err := s.List(ctx)
			if err != nil {
				return err
			}
			return printMembers(cmd, members)
		})
	},
}

var membersFindCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Find members whose name contains the query",
	Long:  `Matching ignores case and diacritics, so "zoe" finds "Zoë".`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store.Store) error {
			members, err := s.Find(ctx, args[0])
			if err != nil {
				return err
			}
			return printMembers(cmd, members)
		})
	},
}

var membersGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store.Store) error {
			p := s.Get(ctx, args[0])
			if p == nil {
				return fmt.Errorf("member %s not found", args[0])
			}
			return printMembers(cmd, []store.Member{{Key: args[0], Profile: *p}})
		})
	},
}

var membersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Enroll a new member",
	Long: `Enroll a new member. Without --key the identity key is the last four
digits of the phone number. Existing members are never overwritten.

Examples:
  face-attendance members add --name "Ada Lovelace" --age 36 --phone 5550123
  face-attendance members add --key ada --name "Ada Lovelace" --age 36 --phone 5550123`,
	Args: cobra.NoArgs,
	RunE: runMembersAdd,
}

func init() {
	rootCmd.AddCommand(membersCmd)
	membersCmd.AddCommand(membersListCmd, membersFindCmd, membersGetCmd, membersAddCmd)

	for _, c := range []*cobra.Command{membersListCmd, membersFindCmd, membersGetCmd} {
		c.Flags().Bool("json", false, "Output as JSON")
	}

	membersAddCmd.Flags().String("key", "", "Identity key (defaults to the last four phone digits)")
	membersAddCmd.Flags().String("name", "", "Full name")
	membersAddCmd.Flags().String("age", "", "Age")
	membersAddCmd.Flags().String("phone", "", "Phone number, digits only")
}

func runMembersAdd(cmd *cobra.Command, args []string) error {
	p := store.Profile{
		FullName:    mustGetString(cmd, "name"),
		Age:         store.Age(mustGetString(cmd, "age")),
		PhoneNumber: mustGetString(cmd, "phone"),
	}

	key := mustGetString(cmd, "key")
	if key == "" {
		derived, err := store.KeyFromPhone(p.PhoneNumber)
		if err != nil {
			return err
		}
		key = derived
	}

	return withStore(func(ctx context.Context, s *store.Store) error {
		if err := s.Add(ctx, key, p); err != nil {
			return err
		}
		fmt.Printf("Enrolled %s as %s\n", p.FullName, key)
		return nil
	})
}

// withStore opens the configured member store for one command.
func withStore(fn func(ctx context.Context, s *store.Store) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	b := newBackends(cfg, log)
	s, err := b.store(ctx)
	if err != nil {
		_ = b.Close()
		return err
	}

	err = fn(ctx, s)
	if closeErr := b.Close(); err == nil {
		err = closeErr
	}
	return err
}

func printMembers(cmd *cobra.Command, members []store.Member) error {
	if mustGetBool(cmd, "json") {
		if members == nil {
			members = []store.Member{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "    ")
		return enc.Encode(members)
	}

	if len(members) == 0 {
		fmt.Println("No members found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tAGE\tPHONE\tLAST ATTENDANCE")
	for _, m := range members {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.Key, m.FullName, m.Age, m.PhoneNumber, m.LastAttendance)
	}
	return w.Flush()
}
