package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kferran/apfsck/internal/checker"
	"github.com/kferran/apfsck/internal/config"
	"github.com/kferran/apfsck/internal/types"
)

var (
	checkBlockSize      uint32
	checkSuperblockAddr int64
	checkVolumeOid      uint64
)

var checkCmd = &cobra.Command{
	Use:   "check <container-path>",
	Short: "Walk and validate a container's object map and catalog tree",
	Long: `check opens the container at the given path, validates its
superblock, resolves a volume (the first one the container names,
unless --volume-oid picks a different one), and walks that volume's
object map and catalog B-tree from the root down.

Any structural problem — a bad checksum, an out-of-order key, a
duplicate leaf key, a child whose oid doesn't match its separator, or
a tree deeper than 12 levels — is fatal: check prints a single-line
diagnostic and exits with a non-zero status.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runCheck(args[0])
	},
}

func init() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		cfg = &config.Config{BlockSize: 4096}
	}

	checkCmd.Flags().Uint32Var(&checkBlockSize, "block-size", cfg.BlockSize, "logical block size to assume before the superblock is read")
	checkCmd.Flags().Int64Var(&checkSuperblockAddr, "superblock-addr", cfg.SuperblockAddr, "physical block number of the container superblock")
	checkCmd.Flags().Uint64Var(&checkVolumeOid, "volume-oid", 0, "check a specific volume oid instead of the container's first volume")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(path string) {
	report, err := checker.Run(checker.Options{
		ContainerPath:  path,
		BlockSize:      checkBlockSize,
		SuperblockAddr: types.Paddr(checkSuperblockAddr),
		VolumeOid:      types.OidT(checkVolumeOid),
	})
	if err != nil {
		// Per the checker's error-handling contract, any fatal
		// condition is reported as a single line on standard output
		// naming the failing block or condition, and the process
		// exits non-zero.
		fmt.Println(err.Error())
		os.Exit(1)
	}

	if quiet {
		return
	}

	if GetOutputFormat() == "json" {
		printCheckReportJSON(report)
		return
	}
	printCheckReportText(report)
}

func printCheckReportText(r *checkerReport) {
	fmt.Printf("container uuid: %s\n", formatUUID(r.ContainerUUID))
	fmt.Printf("volume oid:     %d\n", r.VolumeOid)
	fmt.Printf("volume uuid:    %s\n", formatUUID(r.VolumeUUID))
	fmt.Printf("block size:     %d\n", r.BlockSize)
	fmt.Printf("block count:    %d\n", r.BlockCount)
	fmt.Printf("catalog root:   block %d\n", r.CatalogRoot)
	fmt.Println("ok")
}

func printCheckReportJSON(r *checkerReport) {
	out := struct {
		ContainerUUID string `json:"container_uuid"`
		VolumeOid     uint64 `json:"volume_oid"`
		VolumeUUID    string `json:"volume_uuid"`
		BlockSize     uint32 `json:"block_size"`
		BlockCount    uint64 `json:"block_count"`
		CatalogRoot   int64  `json:"catalog_root_block"`
		Ok            bool   `json:"ok"`
	}{
		ContainerUUID: formatUUID(r.ContainerUUID),
		VolumeOid:     uint64(r.VolumeOid),
		VolumeUUID:    formatUUID(r.VolumeUUID),
		BlockSize:     r.BlockSize,
		BlockCount:    r.BlockCount,
		CatalogRoot:   int64(r.CatalogRoot),
		Ok:            true,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

// formatUUID renders an on-disk uuid_t using the same library the
// teacher project uses to parse and print APFS UUIDs elsewhere.
func formatUUID(u types.UUID) string {
	return uuid.UUID(u).String()
}

type checkerReport = checker.Report
