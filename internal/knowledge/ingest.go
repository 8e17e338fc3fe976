package knowledge

import (
	"fmt"
	"strings"

	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// IngestConversation stores a question/answer exchange keyed by its
// thread id.
func (s *Service) IngestConversation(threadID, question, answer string) error {
	content := fmt.Sprintf("User asked: %s\nResponse: %s",
		truncate(question, 500), truncate(answer, 1500))
	return s.Ingest(models.ChunkConversation, content, "thread:"+threadID)
}

// IngestTaskOutcome stores what an agent did on a task and how it went.
func (s *Service) IngestTaskOutcome(directiveID, taskID, agentID, description string, success bool, defectCount int, cost float64) error {
	status := "succeeded"
	if !success {
		status = "failed"
	}
	defectNote := ""
	if defectCount > 0 {
		defectNote = fmt.Sprintf(" with %d defects", defectCount)
	}
	content := fmt.Sprintf("Task: %s\nAgent %s %s%s. Cost: $%.4f",
		truncate(description, 500), agentID, status, defectNote, cost)
	return s.Ingest(models.ChunkTaskOutcome, content,
		fmt.Sprintf("task:%s/%s", directiveID, taskID))
}

// IngestErrorResolution stores a problem and how it was fixed. These
// chunks carry the highest retrieval weight and are never pruned.
func (s *Service) IngestErrorResolution(problem, resolution, sourceID string) error {
	content := fmt.Sprintf("Problem: %s\nResolution: %s",
		truncate(problem, 800), truncate(resolution, 1200))
	return s.Ingest(models.ChunkErrorResolution, content, sourceID)
}

// IngestCodeChange stores a summary of what code was modified.
func (s *Service) IngestCodeChange(description string, filesChanged []string, directiveID string) error {
	filesStr := "unknown files"
	if len(filesChanged) > 0 {
		if len(filesChanged) > 10 {
			filesChanged = filesChanged[:10]
		}
		filesStr = strings.Join(filesChanged, ", ")
	}
	content := fmt.Sprintf("Code change: %s\nFiles: %s",
		truncate(description, 1500), filesStr)
	sourceID := ""
	if directiveID != "" {
		sourceID = "directive:" + directiveID + "/changes"
	}
	return s.Ingest(models.ChunkCodeChange, content, sourceID)
}

// IngestDirectiveSummary stores a high-level record of a finished
// directive.
func (s *Service) IngestDirectiveSummary(directiveID, text, outcome string, taskCount int, cost float64) error {
	content := fmt.Sprintf("Directive: %s\nOutcome: %s across %d tasks. Cost: $%.4f",
		truncate(text, 800), outcome, taskCount, cost)
	return s.Ingest(models.ChunkDirectiveSummary, content, "directive:"+directiveID)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
