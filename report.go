package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"ubiformat/mtd"
	"ubiformat/scan"
	"ubiformat/ubi"
)

func newTable(w io.Writer, sep string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator(sep)
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func printPairs(w io.Writer, pairs [][2]string) {
	table := newTable(w, ":")
	for _, p := range pairs {
		table.Append([]string{p[0], p[1]})
	}
	table.Render()
}

func geometryPairs(info mtd.Info) [][2]string {
	mtdNum := "-"
	if info.MTDNum >= 0 {
		mtdNum = strconv.Itoa(info.MTDNum)
	}
	return [][2]string{
		{"Name", info.Name},
		{"Type", info.Type},
		{"MTD number", mtdNum},
		{"Size", humanize.IBytes(uint64(info.Size()))},
		{"Eraseblock size", fmt.Sprintf("%s (%d bytes)", humanize.IBytes(uint64(info.EBSize)), info.EBSize)},
		{"Eraseblocks", strconv.Itoa(info.EBCount)},
		{"Min. I/O size", fmt.Sprintf("%d bytes", info.MinIOSize)},
		{"Sub-page size", fmt.Sprintf("%d bytes", info.SubpageSize)},
		{"Bad blocks allowed", strconv.FormatBool(info.BadAllowed)},
		{"Writable", strconv.FormatBool(info.Writable)},
	}
}

// printInfo shows the device geometry and where UBI would put its headers.
func printInfo(w io.Writer, info mtd.Info, ui *ubi.Info) {
	pairs := geometryPairs(info)
	pairs = append(pairs,
		[2]string{"VID header offset", strconv.Itoa(ui.VIDHdrOffset)},
		[2]string{"Data offset", strconv.Itoa(ui.DataOffset)},
		[2]string{"LEB size", fmt.Sprintf("%s (%d bytes)", humanize.IBytes(uint64(ui.LEBSize)), ui.LEBSize)},
		[2]string{"Max. volumes", strconv.Itoa(ui.MaxVolumes)},
	)
	printPairs(w, pairs)
}

// printScanReport shows the scan summary and, with blocks set, one row per
// eraseblock.
func printScanReport(w io.Writer, info mtd.Info, s *scan.Summary, blocks bool) {
	printPairs(w, geometryPairs(info))
	fmt.Fprintln(w)

	offsets := "-"
	if s.VIDHdrOffset >= 0 {
		offsets = fmt.Sprintf("%d / %d", s.VIDHdrOffset, s.DataOffset)
	}
	printPairs(w, [][2]string{
		{"Good", strconv.Itoa(s.GoodCount)},
		{"Bad", fmt.Sprintf("%d %v", s.BadCount, s.BadBlocks())},
		{"Valid erase counters", strconv.Itoa(s.OKCount)},
		{"Mean erase counter", strconv.FormatUint(s.MeanEC, 10)},
		{"Empty", strconv.Itoa(s.EmptyCount)},
		{"Corrupted", strconv.Itoa(s.CorruptedCount)},
		{"Alien", strconv.Itoa(s.AlienCount)},
		{"VID header / data offset", offsets},
	})

	if !blocks {
		return
	}
	fmt.Fprintln(w)
	table := newTable(w, "")
	table.SetHeader([]string{"PEB", "State", "Erase counter"})
	for eb, st := range s.Blocks {
		ec := "-"
		if n, ok := st.ECKnown(); ok {
			ec = strconv.FormatUint(n, 10)
		}
		table.Append([]string{strconv.Itoa(eb), st.Kind.String(), ec})
	}
	table.Render()
}
