package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shouni/go-comic-kit/pkg/asset"
	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/editor"
	"github.com/shouni/go-comic-kit/pkg/generator"
	"github.com/shouni/go-comic-kit/pkg/workflow"
)

// stateResponse は現在の状態です。画像は含めず、ページ数だけを返します。
type stateResponse struct {
	Prompt      string   `json:"prompt"`
	EditPrompt  string   `json:"editPrompt"`
	PageCount   int      `json:"pageCount"`
	CurrentPage int      `json:"currentPage"`
	Narration   []string `json:"narration,omitempty"`
	Generating  bool     `json:"generating"`
	Editing     bool     `json:"editing"`
	Narrating   bool     `json:"narrating"`
}

func (s *Server) state() stateResponse {
	snap := s.mgr.Session().Snapshot()
	resp := stateResponse{
		Prompt:      snap.Prompt,
		EditPrompt:  snap.EditPrompt,
		PageCount:   snap.Comic.PageCount(),
		CurrentPage: snap.CurrentPage,
		Generating:  snap.Generating,
		Editing:     snap.Editing,
		Narrating:   s.mgr.Narrator().Narrating(),
	}
	if snap.Comic.HasNarration() {
		resp.Narration = snap.Comic.Narration
	}
	return resp
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, s.state())
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) putPrompt(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.mgr.SetPrompt(req.Prompt)
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) postSuggest(c *gin.Context) {
	prompt, err := s.mgr.SuggestPrompt(detached(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, promptRequest{Prompt: prompt})
}

type generateRequest struct {
	ApplyStyle    bool   `json:"applyStyle"`
	ArtStyle      string `json:"artStyle"`
	LineThickness string `json:"lineThickness"`
	Shading       string `json:"shading"`
	ScienceFact   bool   `json:"scienceFact"`
}

func (r generateRequest) options() workflow.GenerateOptions {
	return workflow.GenerateOptions{
		Style: generator.StyleOptions{
			ApplyStyle:    r.ApplyStyle,
			ArtStyle:      r.ArtStyle,
			LineThickness: r.LineThickness,
			Shading:       r.Shading,
		},
		ScienceFact: r.ScienceFact,
	}
}

func bindGenerate(c *gin.Context) (generateRequest, bool) {
	var req generateRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return req, false
	}
	return req, true
}

func (s *Server) postStrip(c *gin.Context) {
	req, ok := bindGenerate(c)
	if !ok {
		return
	}
	if _, err := s.mgr.GenerateStrip(detached(c), req.options()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) postStory(c *gin.Context) {
	req, ok := bindGenerate(c)
	if !ok {
		return
	}
	if _, err := s.mgr.GenerateStory(detached(c), req.options()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.state())
}

type pageRequest struct {
	Page int `json:"page"`
}

func (s *Server) putPage(c *gin.Context) {
	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.mgr.SetCurrentPage(req.Page); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) postNarration(c *gin.Context) {
	started, err := s.mgr.ToggleNarration(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"narrating": started})
}

type editRequest struct {
	Page        int    `json:"page"`
	Instruction string `json:"instruction"`
	Preset      string `json:"preset"`
}

func (s *Server) postEdit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := s.mgr.Edit(detached(c), req.Page, req.Instruction); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) postPreset(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := s.mgr.ApplyPreset(detached(c), req.Page, req.Preset); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) getPresets(c *gin.Context) {
	c.JSON(http.StatusOK, editor.PresetNames())
}

func (s *Server) getHistory(c *gin.Context) {
	c.JSON(http.StatusOK, s.mgr.History())
}

func (s *Server) deleteHistory(c *gin.Context) {
	s.mgr.ClearHistory(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (s *Server) loadHistory(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, fmt.Errorf("invalid history index: %q", c.Param("index")))
		return
	}
	if _, err := s.mgr.LoadHistoryItem(c.Request.Context(), idx); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) getDraft(c *gin.Context) {
	ok, err := s.mgr.Persistence().HasDraft(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": ok})
}

func (s *Server) resumeDraft(c *gin.Context) {
	ok, err := s.mgr.ResumeDraft(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not_found", Message: "No draft found to load."})
		return
	}
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) deleteDraft(c *gin.Context) {
	if err := s.mgr.DiscardDraft(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type characterRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Appearance  string `json:"appearance"`
	Personality string `json:"personality"`
	Powers      string `json:"powers"`
	FaceImage   string `json:"faceImage"`
}

func (s *Server) listCharacters(c *gin.Context) {
	c.JSON(http.StatusOK, s.mgr.Characters().List())
}

func (s *Server) addCharacter(c *gin.Context) {
	var req characterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	form := domain.Character{
		Name:        req.Name,
		Appearance:  req.Appearance,
		Personality: req.Personality,
		Powers:      req.Powers,
	}
	if req.Type != "" {
		t, err := domain.ParseCharacterType(req.Type)
		if err != nil {
			badRequest(c, err)
			return
		}
		form.Type = t
	}
	added, err := s.mgr.AddCharacter(detached(c), form, req.FaceImage)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

func (s *Server) removeCharacter(c *gin.Context) {
	if !s.mgr.Characters().Remove(domain.CharacterID(c.Param("id"))) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not_found", Message: "character not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getTheme(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"theme": s.mgr.Persistence().Theme(c.Request.Context())})
}

func (s *Server) putTheme(c *gin.Context) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.mgr.Persistence().SetTheme(c.Request.Context(), req.Theme); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": req.Theme})
}

func (s *Server) exportPage(c *gin.Context) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		badRequest(c, fmt.Errorf("invalid page: %q", c.Param("page")))
		return
	}
	data, name, err := s.mgr.Exporter().Page(c.Request.Context(), s.mgr.Session().Comic(), page)
	if err != nil {
		writeError(c, err)
		return
	}
	attachment(c, name, "image/png", data)
}

func (s *Server) exportWebcomic(c *gin.Context) {
	data, err := s.mgr.Exporter().Webcomic(c.Request.Context(), s.mgr.Session().Comic())
	if err != nil {
		writeError(c, err)
		return
	}
	attachment(c, asset.DefaultWebcomicFileName, "image/png", data)
}

func (s *Server) exportPDF(c *gin.Context) {
	snap := s.mgr.Session().Snapshot()
	data, err := s.mgr.Exporter().PDF(c.Request.Context(), snap.Comic, snap.Prompt)
	if err != nil {
		writeError(c, err)
		return
	}
	attachment(c, asset.DefaultPDFFileName, "application/pdf", data)
}

func attachment(c *gin.Context, name, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, contentType, data)
}
