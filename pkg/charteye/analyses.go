package charteye

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	maxChartImageBytes  = 10 << 20
	chartMaxTokens      = 1000
	anonymousOwner      = "anonymous"
	defaultAnalysisList = 50
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ChartUpload is one uploaded chart image. UserID is empty for anonymous uploads.
type ChartUpload struct {
	UserID      string
	FileName    string
	ContentType string
	Data        []byte
}

const analysisColumns = `id, user_id, image_url, analysis, pattern_clarity, trend_alignment, risk_reward,
	volume_confirmation, key_level_proximity, overall_grade, is_mock, created_at, updated_at`

// AnalyzeChart grades an uploaded chart image. Authenticated uploads pass the upload gate
// and are persisted; anonymous uploads are analyzed only.
func (c *Core) AnalyzeChart(ctx context.Context, upload ChartUpload) (*ChartAnalysis, error) {
	contentType, err := validateChartUpload(&upload)
	if err != nil {
		return nil, err
	}

	userID := strings.TrimSpace(upload.UserID)
	if userID != "" {
		if _, err := c.reserveUpload(userID); err != nil {
			return nil, err
		}
	}
	release := func() {
		if userID != "" {
			c.releaseUpload(userID)
		}
	}

	imageURL, err := c.storeChartImage(ctx, userID, upload.FileName, contentType, upload.Data)
	if err != nil {
		release()
		return nil, err
	}

	outcome := complete(ctx, c, CompletionRequest{
		Feature:      "chart_analysis",
		SystemPrompt: chartAnalysisSystemPrompt,
		UserPrompt:   chartAnalysisUserPrompt,
		Images:       []Image{{MIMEType: contentType, Data: upload.Data}},
		MaxTokens:    chartMaxTokens,
	}, func(completion Completion) (chartModelResult, error) {
		return parseChartAnalysis(completion.Content)
	}, c.syntheticChartAnalysis)

	now := c.timestamp()
	analysis := &ChartAnalysis{
		ID:         uuid.NewString(),
		UserID:     userID,
		ImageURL:   imageURL,
		Analysis:   outcome.Value.Analysis,
		Grading:    outcome.Value.Grading,
		CreatedAt:  now,
		UpdatedAt:  now,
		Provenance: outcome.Provenance(),
	}

	if userID != "" {
		if err := c.insertAnalysis(analysis); err != nil {
			release()
			return nil, err
		}
	}
	return analysis, nil
}

// GetAnalysis returns a stored chart analysis.
func (c *Core) GetAnalysis(id string) (*ChartAnalysis, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, NewError(ErrCodeInvalidInput, "analysis id is required")
	}
	row := c.db.QueryRow(`SELECT `+analysisColumns+` FROM chart_analyses WHERE id = ?`, id)
	analysis, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewError(ErrCodeNotFound, "Analysis not found")
	}
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "load analysis", err)
	}
	return analysis, nil
}

// GetPublicAnalysis returns the shareable view of a stored analysis.
func (c *Core) GetPublicAnalysis(id string) (*PublicAnalysis, error) {
	analysis, err := c.GetAnalysis(id)
	if err != nil {
		return nil, err
	}
	public := analysis.Public()
	return &public, nil
}

// ListUserAnalyses returns the newest analyses owned by userID.
func (c *Core) ListUserAnalyses(userID string, limit int) ([]ChartAnalysis, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, NewError(ErrCodeInvalidInput, "user id is required")
	}
	limit = defaultInt(limit, defaultAnalysisList)
	rows, err := c.db.Query(
		`SELECT `+analysisColumns+` FROM chart_analyses WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "list analyses", err)
	}
	defer rows.Close()

	result := []ChartAnalysis{}
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan analysis", err)
		}
		result = append(result, *analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(ErrCodeDatabase, "list analyses", err)
	}
	return result, nil
}

// CountUserAnalyses returns the number of analyses stored for userID.
func (c *Core) CountUserAnalyses(userID string) (int, error) {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM chart_analyses WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return 0, WrapError(ErrCodeDatabase, "count analyses", err)
	}
	return count, nil
}

func (c *Core) insertAnalysis(a *ChartAnalysis) error {
	_, err := c.db.Exec(
		`INSERT INTO chart_analyses (`+analysisColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.ImageURL, a.Analysis,
		a.Grading.PatternClarity, a.Grading.TrendAlignment, a.Grading.RiskReward,
		a.Grading.VolumeConfirmation, a.Grading.KeyLevelProximity, a.Grading.OverallGrade,
		boolToInt(a.Mock), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return WrapError(ErrCodeDatabase, "save analysis", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*ChartAnalysis, error) {
	var (
		a    ChartAnalysis
		mock int
	)
	if err := row.Scan(
		&a.ID, &a.UserID, &a.ImageURL, &a.Analysis,
		&a.Grading.PatternClarity, &a.Grading.TrendAlignment, &a.Grading.RiskReward,
		&a.Grading.VolumeConfirmation, &a.Grading.KeyLevelProximity, &a.Grading.OverallGrade,
		&mock, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Mock = mock != 0
	return &a, nil
}

func (c *Core) storeChartImage(ctx context.Context, userID, fileName, contentType string, data []byte) (string, error) {
	if c.objects == nil {
		return dataURL(contentType, data), nil
	}
	owner := userID
	if owner == "" {
		owner = anonymousOwner
	}
	key := fmt.Sprintf("charts/%s/%d_%s", sanitizePathPart(owner), c.now().UnixMilli(), sanitizeFileName(fileName))
	url, err := c.objects.Put(ctx, key, contentType, data)
	if err != nil {
		return "", WrapError(ErrCodeStorage, "upload chart image", err)
	}
	return url, nil
}

func validateChartUpload(upload *ChartUpload) (string, error) {
	if len(upload.Data) == 0 {
		return "", NewError(ErrCodeInvalidInput, "Missing file")
	}
	if len(upload.Data) > maxChartImageBytes {
		return "", NewError(ErrCodeInvalidInput, "File too large")
	}
	contentType := strings.TrimSpace(strings.ToLower(upload.ContentType))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(upload.Data)
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", NewError(ErrCodeInvalidInput, "Uploaded file must be an image")
	}
	return contentType, nil
}

func dataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func sanitizeFileName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == "/" || base == "" {
		base = "chart"
	}
	return sanitizePathPart(base)
}

func sanitizePathPart(part string) string {
	cleaned := strings.Trim(unsafeFileChars.ReplaceAllString(part, "_"), "._")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
