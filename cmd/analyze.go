package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lawgenie/compliance-cli/internal/model"
	"github.com/lawgenie/compliance-cli/pkg/hscode"
)

var (
	analyzeHSCode      string
	analyzeProduct     string
	analyzeDescription string
	analyzeRefresh     bool
	analyzeNewProduct  bool
	analyzeJSON        bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze regulatory requirements for one product",
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeProduct == "" {
			return eris.New("--product is required")
		}

		ctx := cmd.Context()

		// Without an explicit code, ask the recommendation service for
		// the best candidate.
		hsCode := analyzeHSCode
		if hsCode == "" {
			client := hscode.NewClient(cfg.HSCode.BaseURL)
			resp, err := client.Recommend(ctx, hscode.RecommendRequest{
				ProductName: analyzeProduct,
				Description: analyzeDescription,
				Limit:       1,
			})
			if err != nil {
				return eris.Wrap(err, "recommend hs code")
			}
			if len(resp.Candidates) == 0 {
				return eris.New("no HS code candidates for product, pass --hs-code")
			}
			best := resp.Candidates[0]
			hsCode = best.HSCode
			zap.L().Info("hs code recommended",
				zap.String("hs_code", best.HSCode),
				zap.Float64("confidence", best.Confidence),
			)
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Analyzer.Analyze(ctx, model.AnalysisRequest{
			HSCode:             hsCode,
			ProductName:        analyzeProduct,
			ProductDescription: analyzeDescription,
			ForceRefresh:       analyzeRefresh,
			IsNewProduct:       analyzeNewProduct,
		})
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		printReport(cmd, result)
		return nil
	},
}

// printReport writes a human-readable summary of the result.
func printReport(cmd *cobra.Command, r *model.AnalysisResult) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Analysis %s (%s)\n", r.ID, r.Status)
	fmt.Fprintf(out, "Product: %s (HS %s)\n", r.Request.ProductName, r.Request.HSCode)
	if r.FromCache {
		fmt.Fprintln(out, "Served from cache.")
	}
	fmt.Fprintf(out, "Agencies: %s", strings.Join(r.Targets.Primary, ", "))
	if len(r.Targets.Secondary) > 0 {
		fmt.Fprintf(out, " (secondary: %s)", strings.Join(r.Targets.Secondary, ", "))
	}
	fmt.Fprintf(out, " [%s, %.2f]\n", r.Targets.Source, r.Targets.Confidence)

	fmt.Fprintf(out, "\nRequirements (%d):\n", r.Requirements.Total)
	for _, item := range r.Requirements.Items {
		flag := "optional"
		if item.Required {
			flag = "required"
		}
		fmt.Fprintf(out, "  - [%s] %s (%s, %s)\n", item.Agency, item.Title, item.Kind, flag)
	}

	if len(r.Conflicts) > 0 {
		fmt.Fprintf(out, "\nConflicts (%d):\n", len(r.Conflicts))
		for _, c := range r.Conflicts {
			fmt.Fprintf(out, "  - [%s] %s\n", c.Severity, c.Description)
		}
	}

	fmt.Fprintf(out, "\nPrecedent verdict: %s (score %.2f)\n", r.Validation.Verdict, r.Validation.Score)
	fmt.Fprintf(out, "Confidence: %.2f (%s)\n", r.Confidence.Score, r.Confidence.Level)

	if r.Summary != nil {
		fmt.Fprintf(out, "\n%s\n", r.Summary.Answer)
		if r.Summary.AnswerKO != "" {
			fmt.Fprintf(out, "\n%s\n", r.Summary.AnswerKO)
		}
	}

	for _, w := range r.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeHSCode, "hs-code", "", "HS code of the product (recommended automatically when omitted)")
	analyzeCmd.Flags().StringVar(&analyzeProduct, "product", "", "product name (required)")
	analyzeCmd.Flags().StringVar(&analyzeDescription, "description", "", "product description")
	analyzeCmd.Flags().BoolVar(&analyzeRefresh, "force-refresh", false, "bypass caches and regather evidence")
	analyzeCmd.Flags().BoolVar(&analyzeNewProduct, "new-product", false, "mark as a product without import history")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
