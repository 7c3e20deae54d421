package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maxiofs/simplestore/pkg/encryption"
	"github.com/maxiofs/simplestore/pkg/future"
	"github.com/maxiofs/simplestore/pkg/primitive"
	"github.com/maxiofs/simplestore/pkg/simplestore"
)

// Value types accepted by --type
const (
	typeBytes   = "bytes"
	typeString  = "string"
	typeInt32   = "int32"
	typeInt64   = "int64"
	typeFloat64 = "float64"
	typeBool    = "bool"
)

func addTypeFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("type", "t", typeString, "Value type (bytes, string, int32, int64, float64, bool)")
}

func newGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			valueType, _ := cmd.Flags().GetString("type")
			return withStore(cmd, func(ctx context.Context, s *primitive.Store) error {
				out, err := getValue(ctx, s, args[0], valueType)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			})
		},
	}
	addTypeFlag(cmd)
	return cmd
}

func newPutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put KEY VALUE",
		Short: "Write a value; zero values remove the key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			valueType, _ := cmd.Flags().GetString("type")
			return withStore(cmd, func(ctx context.Context, s *primitive.Store) error {
				return putValue(ctx, s, args[0], args[1], valueType)
			})
		},
	}
	addTypeFlag(cmd)
	return cmd
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm KEY...",
		Aliases: []string{"remove"},
		Short:   "Remove keys",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *primitive.Store) error {
				for _, key := range args {
					if _, err := s.Remove(key).Get(ctx); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newContainsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "contains KEY",
		Short: "Print whether a key has a stored value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *primitive.Store) error {
				found, err := s.Contains(args[0]).Get(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatBool(found))
				return nil
			})
		},
	}
}

func newKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the keys of a namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *primitive.Store) error {
				keys, err := s.Keys().Get(ctx)
				if err != nil {
					return err
				}
				for _, key := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), key)
				}
				return nil
			})
		},
	}
}

func newClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every key of a namespace, keeping child namespaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *primitive.Store) error {
				_, err := s.Clear().Get(ctx)
				return err
			})
		},
	}
}

func newDeleteAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-all",
		Short: "Delete a namespace and every namespace below it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *primitive.Store) error {
				_, err := s.DeleteAllNow().Get(ctx)
				return err
			})
		},
	}
}

func newGenKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Print a random key for --encryption-key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := encryption.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(key))
			return nil
		},
	}
}

// withStore opens the namespace selected by the flags, runs fn and closes
// everything again.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, s *primitive.Store) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	namespace, _ := cmd.Flags().GetString("namespace")
	useCache, _ := cmd.Flags().GetBool("cache")
	printMetrics, _ := cmd.Flags().GetBool("metrics")

	nsConfig := simplestore.NamespaceConfigDefault
	if useCache {
		nsConfig = simplestore.NamespaceConfigCache
	}

	factory, err := simplestore.FromConfig(cfg, logrus.StandardLogger())
	if err != nil {
		return fmt.Errorf("failed to create store factory: %w", err)
	}
	defer func() {
		if printMetrics {
			if werr := factory.Metrics().WriteText(cmd.ErrOrStderr()); werr != nil {
				logrus.WithError(werr).Warn("Failed to write metrics")
			}
		}
		factory.Close()
	}()

	s, err := factory.Open(namespace, nsConfig)
	if err != nil {
		return err
	}
	defer func() {
		if _, cerr := s.Close().Wait(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, primitive.Wrap(s))
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func getValue(ctx context.Context, s *primitive.Store, key, valueType string) ([]byte, error) {
	switch valueType {
	case typeBytes:
		return s.Get(key).Get(ctx)
	case typeString:
		return line(ctx, s.GetString(key), func(v string) string { return v })
	case typeInt32:
		return line(ctx, s.GetInt32(key), func(v int32) string { return strconv.FormatInt(int64(v), 10) })
	case typeInt64:
		return line(ctx, s.GetInt64(key), func(v int64) string { return strconv.FormatInt(v, 10) })
	case typeFloat64:
		return line(ctx, s.GetFloat64(key), func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) })
	case typeBool:
		return line(ctx, s.GetBool(key), strconv.FormatBool)
	default:
		return nil, fmt.Errorf("unknown value type %q", valueType)
	}
}

func line[T any](ctx context.Context, f *future.Future[T], format func(T) string) ([]byte, error) {
	v, err := f.Get(ctx)
	if err != nil {
		return nil, err
	}
	return []byte(format(v) + "\n"), nil
}

func putValue(ctx context.Context, s *primitive.Store, key, raw, valueType string) error {
	var err error
	switch valueType {
	case typeBytes:
		_, err = s.Put(key, []byte(raw)).Get(ctx)
	case typeString:
		_, err = s.PutString(key, raw).Get(ctx)
	case typeInt32:
		var v int64
		if v, err = strconv.ParseInt(raw, 10, 32); err == nil {
			_, err = s.PutInt32(key, int32(v)).Get(ctx)
		}
	case typeInt64:
		var v int64
		if v, err = strconv.ParseInt(raw, 10, 64); err == nil {
			_, err = s.PutInt64(key, v).Get(ctx)
		}
	case typeFloat64:
		var v float64
		if v, err = strconv.ParseFloat(raw, 64); err == nil {
			_, err = s.PutFloat64(key, v).Get(ctx)
		}
	case typeBool:
		var v bool
		if v, err = strconv.ParseBool(raw); err == nil {
			_, err = s.PutBool(key, v).Get(ctx)
		}
	default:
		return fmt.Errorf("unknown value type %q", valueType)
	}
	return err
}
