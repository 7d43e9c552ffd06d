package report

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioeq-design-server/internal/domain"
	"github.com/bioeq-design-server/internal/repository"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func sampleDesign() *domain.DesignParameters {
	washout := 2.0
	return &domain.DesignParameters{
		SampleSize:          12,
		RecruitmentSize:     17,
		DesignType:          domain.DesignCrossover2x2,
		CVIntra:             22.5,
		Power:               0.8,
		Alpha:               0.05,
		DropoutRate:         10,
		ScreenFailRate:      20,
		WashoutDays:         &washout,
		SamplingPlan:        map[string]float64{domain.SamplePredose: 0, domain.SamplePeak: 2.5, domain.SampleLate3: 32.5},
		DesignExplanation:   "Standard 2x2 crossover is adequate for low variability.",
		RandomizationScheme: "TR/RT",
	}
}

func TestRenderer_Markdown(t *testing.T) {
	renderer := NewRenderer()
	meta := domain.ProjectMetadata{
		ProjectID: "4f1c0e6a-0000-0000-0000-000000000000",
		INNEn:     "metformin",
		INNRu:     "метформин",
		DrugNameT: "Metformin-Test",
		Dosage:    "500 mg",
	}
	compliance := &domain.ComplianceResult{
		IsCompliant: true,
		Warnings:    []string{"Very low variability (3.0%). Verify data source."},
		Status:      domain.ComplianceApproved,
	}

	md, err := renderer.Markdown(meta, sampleDesign(), compliance)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(md, "# Bioequivalence Study Synopsis: metformin"))
	for _, expected := range []string{
		"| Active substance | metformin (метформин) |",
		"| Test product (T) | Metformin-Test |",
		"| Reference product (R) | not specified |",
		"- Design: **2x2-crossover**",
		"- Power: 80%, alpha: 0.05",
		"- Recruitment size: 17 (dropout 10%, screen failure 20%)",
		"- Washout period: 2 days",
		"- Randomization: TR/RT",
		"| Around Tmax | 2.50 |",
		"Status: **APPROVED**",
		"- Warning: Very low variability",
	} {
		assert.Contains(t, md, expected)
	}
	assert.Less(t, strings.Index(md, "Pre-dose"), strings.Index(md, "Elimination (5 x T1/2)"))
	assert.NotContains(t, md, "Early post-dose")
}

func TestRenderer_MarkdownWithoutOptionalSections(t *testing.T) {
	design := sampleDesign()
	design.WashoutDays = nil
	design.SamplingPlan = nil
	design.DropoutRate, design.ScreenFailRate = 0, 0

	md, err := NewRenderer().Markdown(domain.ProjectMetadata{INNEn: "metformin"}, design, nil)
	require.NoError(t, err)
	assert.NotContains(t, md, "Washout period")
	assert.NotContains(t, md, "Blood sampling schedule")
	assert.NotContains(t, md, "Regulatory check")
	assert.Contains(t, md, "- Recruitment size: 17\n")

	_, err = NewRenderer().Markdown(domain.ProjectMetadata{}, nil, nil)
	assert.ErrorIs(t, err, domain.ErrDesignNotYetGenerated)
}

func TestRenderer_HTML(t *testing.T) {
	html := NewRenderer().HTML("# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n[link](https://pubmed.ncbi.nlm.nih.gov)\n")
	assert.Contains(t, html, `<h1 id="title">Title</h1>`)
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, `target="_blank"`)
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "reports/metformin_abc.md", []byte("v1"), "text/markdown"))
	require.NoError(t, store.Put(ctx, "reports/metformin_abc.md", []byte("v2"), "text/markdown"))

	data, err := store.Get(ctx, "reports/metformin_abc.md")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	_, err = store.Get(ctx, "reports/missing.md")
	assert.ErrorIs(t, err, ErrReportNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for _, key := range []string{"../escape.md", "/etc/passwd", "reports/../../x"} {
		assert.ErrorIs(t, store.Put(ctx, key, []byte("x"), ""), domain.ErrInvalidInput, key)
	}
}

func TestKey(t *testing.T) {
	project := &domain.Project{ID: uuid.MustParse("4f1c0e6a-1234-4321-8888-000000000000"), INNEn: " Acetylsalicylic Acid "}
	assert.Equal(t, "reports/acetylsalicylic_acid_4f1c0e6a.md", Key(project))

	project.INNEn = "метформин"
	assert.Equal(t, "reports/project_4f1c0e6a.md", Key(project))
}

func newTestService(t *testing.T) (*Service, *repository.SQLiteStore) {
	t.Helper()
	projects, err := repository.NewSQLiteStore(t.TempDir()+"/bioeq.db", quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { projects.Close() })

	files, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewService(projects, files, quietLogger()), projects
}

func TestService_GenerateAndLoad(t *testing.T) {
	svc, projects := newTestService(t)
	ctx := context.Background()

	project := domain.NewProject(domain.ProjectInput{INNEn: "Metformin", DrugNameT: "Glucophage"})
	require.NoError(t, projects.CreateProject(ctx, project))
	require.NoError(t, projects.SaveDesign(ctx, project.ID, sampleDesign()))

	key, err := svc.Generate(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "reports/metformin_"+project.ID.String()[:8]+".md", key)

	stored, err := projects.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, key, stored.ReportKey)

	md, err := svc.Load(ctx, project.ID, "")
	require.NoError(t, err)
	assert.Contains(t, md.Content, "Glucophage")
	assert.Equal(t, key, md.Key)

	page, err := svc.Load(ctx, project.ID, FormatHTML)
	require.NoError(t, err)
	assert.Contains(t, page.Content, "<h1")
	assert.Contains(t, page.ContentType, "text/html")

	_, err = svc.Load(ctx, project.ID, "pdf")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestService_Preconditions(t *testing.T) {
	svc, projects := newTestService(t)
	ctx := context.Background()

	_, err := svc.Generate(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	project := domain.NewProject(domain.ProjectInput{INNEn: "metformin"})
	require.NoError(t, projects.CreateProject(ctx, project))

	_, err = svc.Generate(ctx, project.ID)
	assert.ErrorIs(t, err, domain.ErrDesignNotYetGenerated)

	_, err = svc.Load(ctx, project.ID, FormatMarkdown)
	assert.ErrorIs(t, err, ErrReportNotFound)
}
