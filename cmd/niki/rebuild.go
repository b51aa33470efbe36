package main

import (
	"github.com/spf13/cobra"

	"github.com/nikibot/niki/config"
	"github.com/nikibot/niki/index"
	"github.com/nikibot/niki/ingest"
	"github.com/nikibot/niki/models"
	"github.com/nikibot/niki/provider"
	"github.com/nikibot/niki/telemetry"
)

// rebuild-index is the out-of-band, exclusive rebuild: load the full
// corpus, split, embed, and swap the snapshot in atomically. It must
// not run concurrently with a rebuild against the same location.
func rebuildCMD() *cobra.Command {
	var cfgPath string
	rebuild := &cobra.Command{
		Use:   "rebuild-index",
		Short: "Rebuild the document index from the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			prov, err := provider.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}

			logger := telemetry.NewLogger("REBUILD")
			loader := ingest.NewLoader(logger)
			docs, err := loader.Load(cfg.Ingest.DataDir)
			if err != nil {
				return err
			}
			logger.Printf("loaded %d documents from %s", len(docs), cfg.Ingest.DataDir)

			splitter := ingest.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
			var chunks []models.DocumentChunk
			for _, doc := range docs {
				if ingest.IsParamTable(doc.Source) {
					rows := ingest.SplitParamTable(doc)
					logger.Printf("%s: %d parameter rows", doc.Source, len(rows))
					chunks = append(chunks, rows...)
					continue
				}
				split := splitter.Split([]ingest.RawDocument{doc})
				logger.Printf("%s: %d chunks", doc.Source, len(split))
				chunks = append(chunks, split...)
			}

			store := index.New(cfg.Index.Path, cfg.Index.DenseWeight, cfg.Index.SparseWeight, prov, logger)
			if err := store.Build(cmd.Context(), chunks); err != nil {
				return err
			}
			logger.Printf("index rebuilt with %d chunks", len(chunks))
			return nil
		},
	}
	rebuild.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches ./config and .)")
	return rebuild
}
