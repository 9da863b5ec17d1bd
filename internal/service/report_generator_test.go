package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supervisi-api/internal/models"
)

func jakarta(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	return loc
}

func assessmentAt(aspect string, score int, at time.Time, feedback *string) models.AssessmentDetail {
	return models.AssessmentDetail{
		Assessment:     models.Assessment{AspectName: aspect, Score: score, CreatedAt: at, Feedback: feedback},
		SupervisorName: "Pak Budi",
	}
}

func TestPeriodBounds(t *testing.T) {
	loc := jakarta(t)
	start, end, err := PeriodBounds("2024-02", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, loc), end)

	inside := func(ts time.Time) bool { return !ts.Before(start) && !ts.After(end) }
	assert.True(t, inside(time.Date(2024, 2, 1, 0, 0, 0, 0, loc)))
	assert.True(t, inside(time.Date(2024, 2, 29, 0, 0, 0, 0, loc)), "last day at midnight is included")
	assert.False(t, inside(time.Date(2024, 2, 29, 12, 0, 0, 0, loc)), "later on the last day is excluded")
	assert.False(t, inside(time.Date(2024, 3, 1, 0, 0, 0, 0, loc)), "first instant of next month is excluded")
	assert.False(t, inside(time.Date(2024, 1, 31, 23, 59, 59, 0, loc)))

	_, end, err = PeriodBounds("2024-12", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, loc), end)

	_, _, err = PeriodBounds("2024-13", loc)
	assert.Error(t, err)
}

func TestRecommendationTiers(t *testing.T) {
	cases := []struct {
		avg  float64
		want string
	}{
		{0, recommendationIntensive},
		{2.99, recommendationIntensive},
		{3.00, recommendationProgress},
		{3.99, recommendationProgress},
		{4.00, recommendationExcellent},
		{5.00, recommendationExcellent},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RecommendationFor(tc.avg), "avg %.2f", tc.avg)
	}
}

func TestAggregateEmpty(t *testing.T) {
	res := Aggregate(AggregateInput{Period: "2024-05", TeacherName: "Bu Siti", Subject: "Matematika"})
	assert.Equal(t, 0.0, res.AverageScore)
	assert.Empty(t, res.AspectSummary)
	assert.Equal(t, recommendationIntensive, res.Recommendations)
	assert.Equal(t, "# Laporan Supervisi Guru\n\n"+
		"**Periode:** 2024-05\n"+
		"**Guru:** Bu Siti\n"+
		"**Mata Pelajaran:** Matematika\n"+
		"**Kelas:** Tidak ditentukan\n\n"+
		"## Ringkasan Penilaian\n"+
		"Rata-rata skor: **0.00/5.00**\n"+
		"Jumlah penilaian: **0**\n\n"+
		"## Tidak ada data penilaian untuk periode ini.\n", res.Content)
}

func TestAggregateScenario(t *testing.T) {
	loc := jakarta(t)
	classroom := "10A"
	fb := "Sangat baik"
	day := time.Date(2024, 5, 3, 9, 0, 0, 0, loc)
	res := Aggregate(AggregateInput{
		Period:      "2024-05",
		TeacherName: "Bu Siti",
		Subject:     "Matematika",
		Classroom:   &classroom,
		Location:    loc,
		Assessments: []models.AssessmentDetail{
			assessmentAt("Pedagogi", 5, day, &fb),
			assessmentAt("Profesional", 4, day.Add(time.Hour), nil),
			assessmentAt("Pedagogi", 5, day.Add(2*time.Hour), nil),
		},
	})

	assert.Equal(t, 4.67, res.AverageScore)
	assert.Equal(t, recommendationExcellent, res.Recommendations)
	require.Len(t, res.AspectSummary, 2)
	assert.Equal(t, "Pedagogi", res.AspectSummary[0].Aspect)
	assert.Equal(t, []int{5, 5}, res.AspectSummary[0].Scores)
	assert.Equal(t, 4.0, res.AspectSummary[1].Average)

	assert.Contains(t, res.Content, "**Kelas:** 10A\n\n")
	assert.Contains(t, res.Content, "Rata-rata skor: **4.67/5.00**\n")
	assert.Contains(t, res.Content, "Jumlah penilaian: **3**\n\n")
	assert.Contains(t, res.Content, "### Aspek: Pedagogi\n- Skor: 5/5\n- Supervisor: Pak Budi\n- Feedback: Sangat baik\n- Tanggal: 3/5/2024\n\n")
	assert.Contains(t, res.Content, "### Aspek: Profesional\n- Skor: 4/5\n- Supervisor: Pak Budi\n- Tanggal: 3/5/2024\n\n")
	assert.True(t, strings.HasSuffix(res.Content, "## Analisis Aspek Penilaian\n\n**Pedagogi**: Rata-rata 5.00/5.00\n**Profesional**: Rata-rata 4.00/5.00\n"))
}

func TestAggregateAspectAverages(t *testing.T) {
	now := time.Now()
	res := Aggregate(AggregateInput{Assessments: []models.AssessmentDetail{
		assessmentAt("A", 2, now, nil),
		assessmentAt("B", 5, now, nil),
		assessmentAt("A", 4, now, nil),
	}})
	require.Len(t, res.AspectSummary, 2)
	assert.Equal(t, 3.0, res.AspectSummary[0].Average)
	assert.Equal(t, 5.0, res.AspectSummary[1].Average)
	assert.Contains(t, res.Content, "**A**: Rata-rata 3.00/5.00\n**B**: Rata-rata 5.00/5.00\n")
	assert.Equal(t, 3.67, res.AverageScore)
	assert.Equal(t, recommendationProgress, res.Recommendations)
}

func TestLocalDateUsesLocation(t *testing.T) {
	utcLate := time.Date(2024, 5, 31, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "1/6/2024", localDate(utcLate, jakarta(t)))
	assert.Equal(t, "31/5/2024", localDate(utcLate, time.UTC))
}
