package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRebuildCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-index",
		Short: "Re-embed changed categories and persist a fresh index snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, env, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, env)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.indexing.Rebuild(cmd.Context())
			if err != nil {
				return fmt.Errorf("rebuild index: %w", err)
			}
			a.logger.Info("Index rebuilt", zap.Int("categories", n))
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d categories\n", n)
			return nil
		},
	}
}

type classifyOutput struct {
	ProductID string        `json:"product_id"`
	Matches   []classifyHit `json:"matches"`
}

type classifyHit struct {
	CategoryID string  `json:"category_id"`
	Name       string  `json:"name,omitempty"`
	Score      float64 `json:"score"`
}

func newClassifyCommand(load configLoader) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "classify <product-id>",
		Short: "Classify a stored product and print the ranked categories as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("product id %q: %w", args[0], err)
			}

			cfg, env, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, env)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.prepareIndex(cmd.Context()); err != nil {
				return err
			}

			res, err := a.classify.Classify(cmd.Context(), productID, topK)
			if err != nil {
				return fmt.Errorf("classify: %w", err)
			}

			out := classifyOutput{ProductID: res.ProductID().String()}
			for _, m := range res.TopK() {
				hit := classifyHit{CategoryID: m.CategoryID().String(), Score: m.Score()}
				if c, err := a.catalog.GetCategory(cmd.Context(), m.CategoryID()); err == nil {
					hit.Name = c.Name()
				}
				out.Matches = append(out.Matches, hit)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out) //nolint:wrapcheck // stdout
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of categories to return (0 = configured default)")
	return cmd
}
