package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/idgen"
	"github.com/unkn0wn-root/idgen/idset"
)

// withAllocator resolves config, opens an allocator for the command and
// closes it when fn returns.
func withAllocator(opts *RootOptions, cmd *cobra.Command, fn func(context.Context, idgen.Allocator, *OutputFormatter) error) error {
	cfg, err := opts.config(cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openAllocator(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer a.Close(ctx)

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return fn(ctx, a, out)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <category> <ranges>",
		Short: "Create a category with an initial inventory",
		Long: `Create a category with an initial inventory of IDs.

Example:
  idgen init users 1-1000000
  idgen init orders 1-999,5000-9999`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := idset.Category(args[0])
			set, err := idset.Parse(cat, args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid ranges", err)
			}
			return withAllocator(rootOpts, cmd, func(ctx context.Context, a idgen.Allocator, out *OutputFormatter) error {
				if err := a.Init(ctx, cat, set); err != nil {
					return opError("init "+cat.Name(), err)
				}
				return out.Success(newSetResult(set))
			})
		},
	}
}

// NewTakeCommand creates the take command.
func NewTakeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "take <category> <count>",
		Short: "Reserve IDs from a category",
		Long: `Reserve up to <count> IDs from a category and print them.

Fewer IDs are returned when the inventory holds fewer than requested.

Example:
  idgen take users 100`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := idset.Category(args[0])
			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid count", err)
			}
			return withAllocator(rootOpts, cmd, func(ctx context.Context, a idgen.Allocator, out *OutputFormatter) error {
				taken, err := a.Take(ctx, cat, n)
				if err != nil {
					return opError(fmt.Sprintf("take %d from %s", n, cat), err)
				}
				return out.Success(newSetResult(taken))
			})
		},
	}
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push <category> <ranges>",
		Short: "Return unused IDs to a category",
		Long: `Return unused IDs to a category so they can be taken again.

The pushed ranges must not overlap IDs the category already holds.

Example:
  idgen push users 51-100`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := idset.Category(args[0])
			set, err := idset.Parse(cat, args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid ranges", err)
			}
			pushed := newSetResult(set)
			return withAllocator(rootOpts, cmd, func(ctx context.Context, a idgen.Allocator, out *OutputFormatter) error {
				if err := a.Push(ctx, set); err != nil {
					return opError("push to "+cat.Name(), err)
				}
				return out.Success(pushed)
			})
		},
	}
}

// NewPeekCommand creates the peek command.
func NewPeekCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "peek <category>",
		Short:         "Show the remaining inventory of a category",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := idset.Category(args[0])
			return withAllocator(rootOpts, cmd, func(ctx context.Context, a idgen.Allocator, out *OutputFormatter) error {
				inv, err := a.Peek(ctx, cat)
				if err != nil {
					return opError("peek "+cat.Name(), err)
				}
				return out.Success(newSetResult(inv))
			})
		},
	}
}
