package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pvefleet/pvefleet/internal/ldapgen"
)

func newLDAPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ldap",
		Short: "Generate LDAP DNs, filters, and ldapsearch commands",
	}

	cmd.AddCommand(
		newLDAPDNCmd(),
		newLDAPFilterCmd(),
		newLDAPDecodeCmd(),
		newLDAPSearchCmd(),
	)
	return cmd
}

func newLDAPDNCmd() *cobra.Command {
	var asGroup bool

	cmd := &cobra.Command{
		Use:   "dn <domain/path...>",
		Short: "Convert a slash path to a distinguished name",
		Long: `Converts "example.com/A/B" to a DN. By default every segment is an
OU ("OU=B,OU=A,DC=example,DC=com"). With --group the last segment is
the object's CN ("CN=B,OU=A,DC=example,DC=com").`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				var dn string
				var err error
				if asGroup {
					dn, err = ldapgen.GroupDN(path)
				} else {
					dn, err = ldapgen.DirectoryDN(path)
				}
				if err != nil {
					return err
				}
				fmt.Println(dn)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asGroup, "group", false, "treat the last segment as a CN instead of an OU")
	return cmd
}

func newLDAPFilterCmd() *cobra.Command {
	var (
		storePath string
		set       string
		addGroup  string
		addUser   string
		useOr     bool
		clear     bool
	)

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Accumulate group/user rows and assemble an AND/OR filter",
		Long: `Rows are persisted in a JSON state file between invocations, keyed by
--set, so a filter can be built up over several calls:

  pvefleet ldap filter --add-group example.com/Groups/Admins
  pvefleet ldap filter --add-user jdoe --or`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if storePath == "" {
				storePath = ldapgen.DefaultStorePath()
			}
			store := ldapgen.NewStore(storePath)

			if clear {
				return store.Clear(set)
			}
			if addGroup != "" {
				if err := store.Add(set, ldapgen.Row{Kind: ldapgen.KindGroup, Value: addGroup}); err != nil {
					return err
				}
			}
			if addUser != "" {
				if err := store.Add(set, ldapgen.Row{Kind: ldapgen.KindUser, Value: addUser}); err != nil {
					return err
				}
			}

			rows, err := store.Rows(set)
			if err != nil {
				return err
			}

			op := ldapgen.OpAnd
			if useOr {
				op = ldapgen.OpOr
			}
			filter, err := ldapgen.BuildFilter(op, rows)
			if err != nil {
				return err
			}
			fmt.Println(filter)
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "row store file (default ~/.config/pvefleet/ldap-rows.json)")
	cmd.Flags().StringVar(&set, "set", "default", "named row set within the store")
	cmd.Flags().StringVar(&addGroup, "add-group", "", "append a group row (slash path)")
	cmd.Flags().StringVar(&addUser, "add-user", "", "append a user row (account name)")
	cmd.Flags().BoolVar(&useOr, "or", false, "combine rows with OR instead of AND")
	cmd.Flags().BoolVar(&clear, "clear", false, "discard the row set")
	return cmd
}

func newLDAPDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <base64-value...>",
		Short: "Decode Base64-encoded attribute values back to readable DNs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, encoded := range args {
				decoded, err := ldapgen.DecodeAttribute(encoded)
				if err != nil {
					return fmt.Errorf("%q: %w", encoded, err)
				}
				fmt.Println(decoded)
			}
			return nil
		},
	}
}

func newLDAPSearchCmd() *cobra.Command {
	var (
		serverURL string
		bindDN    string
		baseDN    string
		attrs     []string
	)

	cmd := &cobra.Command{
		Use:   "search <filter>",
		Short: "Render an ldapsearch command line for a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := strings.TrimSpace(args[0])
			if filter == "" {
				return fmt.Errorf("empty filter")
			}
			fmt.Println(ldapgen.SearchCommand(serverURL, bindDN, baseDN, filter, attrs))
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", "", "LDAP server URL (-H)")
	cmd.Flags().StringVar(&bindDN, "bind-dn", "", "bind DN (-D, implies -W password prompt)")
	cmd.Flags().StringVar(&baseDN, "base", "", "search base DN (-b)")
	cmd.Flags().StringSliceVar(&attrs, "attr", nil, "attributes to request")
	return cmd
}
