package main

import (
	"chat-fanout/repositories"
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "", "Key prefix to scan (user:, group:, member:, dm:, gm:)")
	limit := flag.Int("limit", 100, "Maximum rows, 0 for all")
	flag.Parse()

	store, err := repositories.Open(*dbPath, logs.GetLoggerFromString("WARN"), nil)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer store.Close()

	rows, err := store.Inspect(*prefix, *limit)
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Entity ID", "At", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, row := range rows {
		at := ""
		if !row.At.IsZero() {
			at = row.At.Format(time.RFC3339)
		}
		table.Append([]string{row.Key, row.Type, row.EntityID, at, row.Detail})
	}
	table.SetFooter([]string{"", "", "", "rows", strconv.Itoa(len(rows))})
	table.Render()
}
