package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/store"
)

// NewQueryCommand creates the query command and its subcommands. Queries
// read committed state only.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read registry tables and deployed components",
		Long: `Read committed ledger state.

Operations are given as signatures, e.g. "execute(address[],uint256[],bytes[])",
or as 0x-prefixed 4-byte fingerprints.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "has-role <registry> <role> <account>",
		Short: "Check role membership",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, cmd, func(ctx context.Context, r store.Reader) (any, error) {
				addrs, err := addresses(args[0], args[2])
				if err != nil {
					return nil, err
				}
				return r.HasRole(ctx, addrs[0], args[1], addrs[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "role-authorized <registry> <role> <target> <op>",
		Short: "Check whether a role may perform an operation",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, cmd, func(ctx context.Context, r store.Reader) (any, error) {
				addrs, err := addresses(args[0], args[2])
				if err != nil {
					return nil, err
				}
				op, err := access.ParseFingerprint(args[3])
				if err != nil {
					return nil, err
				}
				return r.IsRoleAuthorized(ctx, addrs[0], args[1], addrs[1], op)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "action-authorized <registry> <account> <target> <op>",
		Short: "Check whether an account may perform an operation",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, cmd, func(ctx context.Context, r store.Reader) (any, error) {
				addrs, err := addresses(args[0], args[1], args[2])
				if err != nil {
					return nil, err
				}
				op, err := access.ParseFingerprint(args[3])
				if err != nil {
					return nil, err
				}
				return r.ActionIsAuthorized(ctx, addrs[0], addrs[1], addrs[2], op)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "members <registry> [role]",
		Short: "List role members, or every role with its admin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, cmd, func(ctx context.Context, r store.Reader) (any, error) {
				addrs, err := addresses(args[0])
				if err != nil {
					return nil, err
				}
				roles := args[1:]
				if len(roles) == 0 {
					if roles, err = r.Roles(ctx, addrs[0]); err != nil {
						return nil, err
					}
				}
				return roleTable(ctx, r, addrs[0], roles)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "actions <registry>",
		Short: "List every role to action edge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, cmd, func(ctx context.Context, r store.Reader) (any, error) {
				addrs, err := addresses(args[0])
				if err != nil {
					return nil, err
				}
				edges, err := r.ActionEdges(ctx, addrs[0])
				if err != nil {
					return nil, err
				}
				rows := make([]string, len(edges))
				for i, e := range edges {
					rows[i] = fmt.Sprintf("%s %s %s", store.AddrKey(e.Target), e.Op, e.Role)
				}
				return lines{data: edges, text: rows}, nil
			})
		},
	})

	var code, factory string
	components := &cobra.Command{
		Use:   "components",
		Short: "List deployed components",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, cmd, func(ctx context.Context, r store.Reader) (any, error) {
				var from common.Address
				if factory != "" {
					var err error
					if from, err = parseAddress(factory); err != nil {
						return nil, err
					}
				}
				comps, err := r.ComponentsWhere(ctx, code, from)
				if err != nil {
					return nil, err
				}
				rows := make([]string, len(comps))
				for i, c := range comps {
					rows[i] = fmt.Sprintf("%s %-17s seq=%d factory=%s", c.Address, c.Code, c.Seq, c.Factory)
				}
				return lines{data: comps, text: rows}, nil
			})
		},
	}
	components.Flags().StringVar(&code, "code", "", "only components with this code")
	components.Flags().StringVar(&factory, "factory", "", "only components created by this factory")
	cmd.AddCommand(components)

	return cmd
}

// lines pairs structured data with its text rendering.
type lines struct {
	data any
	text []string
}

type roleRow struct {
	Role    string   `json:"role"`
	Admin   string   `json:"admin"`
	Members []string `json:"members"`
}

func roleTable(ctx context.Context, r store.Reader, registry common.Address, roles []string) (lines, error) {
	rows := make([]roleRow, 0, len(roles))
	text := make([]string, 0, len(roles))
	for _, role := range roles {
		admin, exists, err := r.RoleAdmin(ctx, registry, role)
		if err != nil {
			return lines{}, err
		}
		if !exists {
			return lines{}, fmt.Errorf("role %s does not exist in %s", role, store.AddrKey(registry))
		}
		members, err := r.Members(ctx, registry, role)
		if err != nil {
			return lines{}, err
		}
		row := roleRow{Role: role, Admin: admin, Members: make([]string, len(members))}
		for i, m := range members {
			row.Members[i] = store.AddrKey(m)
		}
		rows = append(rows, row)
		text = append(text, fmt.Sprintf("%s (admin %s): %s", role, admin, strings.Join(row.Members, ", ")))
	}
	return lines{data: rows, text: text}, nil
}

func addresses(raw ...string) ([]common.Address, error) {
	out := make([]common.Address, len(raw))
	for i, s := range raw {
		addr, err := parseAddress(s)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

func runQuery(opts *RootOptions, cmd *cobra.Command, q func(context.Context, store.Reader) (any, error)) error {
	s, _, err := opts.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := q(cmd.Context(), s.Reader())
	if err != nil {
		return WrapExitError(ExitCommandError, "query failed", err)
	}

	formatter := opts.formatter(cmd)
	if l, ok := out.(lines); ok {
		return formatter.Success(l.data, func(w io.Writer) {
			for _, line := range l.text {
				fmt.Fprintln(w, line)
			}
		})
	}
	return formatter.Success(out, func(w io.Writer) {
		fmt.Fprintln(w, out)
	})
}
