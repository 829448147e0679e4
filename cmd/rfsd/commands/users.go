package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/openrfs/rfsd/internal/config"
	"github.com/openrfs/rfsd/internal/metastore"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage rfsd user accounts",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts known to the metadata store",
	RunE:  runUsersList,
}

func init() {
	usersCmd.AddCommand(usersListCmd)
}

func runUsersList(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	meta, err := metastore.Open(metastore.Config{
		Dialect: metastore.DialectType(cfg.Storage.MetaDialect),
		DSN:     cfg.Storage.MetaDSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = meta.Close() }()

	users, err := meta.ListUsers()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"UID", "GID", "Admin"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, u := range users {
		gid := "-"
		if u.GroupGID != nil {
			gid = strconv.FormatUint(uint64(*u.GroupGID), 10)
		}
		admin := ""
		if u.IsAdmin() {
			admin = "yes"
		}
		table.Append([]string{strconv.FormatUint(uint64(u.UID), 10), gid, admin})
	}
	table.Render()

	return nil
}
