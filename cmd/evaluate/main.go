package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/zatekoja/Chartreviewautomation/internal/application/services"
	"github.com/zatekoja/Chartreviewautomation/internal/evaluation"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/openai"
	"github.com/zatekoja/Chartreviewautomation/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	aiClient, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		log.Fatalf("Failed to create OpenAI client: %v", err)
	}
	defer aiClient.Close()

	auditor := services.NewNoteAuditor(aiClient, services.NewAnalysisModels(
		cfg.OpenAI.ChronicityModel,
		cfg.OpenAI.PlanModel,
		cfg.OpenAI.StructureModel,
	))

	goldenPath := os.Getenv("EVAL_GOLDEN_NOTES")
	if goldenPath == "" {
		goldenPath = "config/golden_notes.json"
	}

	notes, err := evaluation.LoadGoldenNotes(goldenPath)
	if err != nil {
		log.Fatalf("Failed to load golden notes: %v", err)
	}
	if err := evaluation.ValidateGoldenNotes(notes); err != nil {
		log.Fatalf("Invalid golden notes: %v", err)
	}

	runner := evaluation.NewRunner(auditor)
	summary, err := runner.Run(context.Background(), notes)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	guardrails := evaluation.NewGuardrails(evaluation.GuardrailConfig{})
	if violations := guardrails.Violations(summary); len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, "guardrail violation: "+v)
		}
		os.Exit(1)
	}
}
