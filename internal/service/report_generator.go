package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/supervisi-api/internal/models"
)

const (
	recommendationIntensive = "Rekomendasi: Guru memerlukan bimbingan intensif. Disarankan untuk:\n1. Pelatihan tambahan\n2. Observasi kelas lebih sering\n3. Diskusi rutin dengan supervisor"
	recommendationProgress  = "Rekomendasi: Guru menunjukkan perkembangan baik. Disarankan untuk:\n1. Penguatan pada aspek tertentu\n2. Sharing session dengan guru lain\n3. Implementasi metode pembelajaran inovatif"
	recommendationExcellent = "Rekomendasi: Guru menunjukkan kinerja sangat baik. Dapat dipertimbangkan untuk:\n1. Menjadi mentor untuk guru lain\n2. Mengembangkan bahan ajar\n3. Presentasi best practice"

	unassignedClassroom = "Tidak ditentukan"
)

// AggregateInput is everything the report narrative is built from.
// Assessments must already be ordered by creation time.
type AggregateInput struct {
	Period      string
	TeacherName string
	Subject     string
	Classroom   *string
	Assessments []models.AssessmentDetail
	Location    *time.Location
}

// AggregateResult is the computed part of a generated report.
type AggregateResult struct {
	AverageScore    float64
	Content         string
	Recommendations string
	AspectSummary   []models.AspectSummary
}

// PeriodBounds returns the inclusive range [start, end] for a YYYY-MM period in loc.
// end is the last calendar day truncated to midnight, so anything later that day
// falls outside the period.
func PeriodBounds(period string, loc *time.Location) (time.Time, time.Time, error) {
	if !periodPattern.MatchString(period) {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period %q", period)
	}
	if loc == nil {
		loc = time.UTC
	}
	year, _ := strconv.Atoi(period[:4])
	month, _ := strconv.Atoi(period[5:])
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, -1), nil
}

// RecommendationFor picks the fixed recommendation text for an average on the 1-5 scale.
func RecommendationFor(avg float64) string {
	switch {
	case avg < 3:
		return recommendationIntensive
	case avg < 4:
		return recommendationProgress
	default:
		return recommendationExcellent
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Aggregate computes the average, per-aspect summary, narrative and recommendation.
func Aggregate(in AggregateInput) AggregateResult {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	var total int
	summaries := make([]models.AspectSummary, 0)
	index := make(map[string]int)
	for _, a := range in.Assessments {
		total += a.Score
		i, ok := index[a.AspectName]
		if !ok {
			i = len(summaries)
			index[a.AspectName] = i
			summaries = append(summaries, models.AspectSummary{Aspect: a.AspectName})
		}
		s := &summaries[i]
		s.Scores = append(s.Scores, a.Score)
		s.Average = mean(s.Scores)
	}

	var avg float64
	if n := len(in.Assessments); n > 0 {
		avg = round2(float64(total) / float64(n))
	}

	classroom := unassignedClassroom
	if in.Classroom != nil && *in.Classroom != "" {
		classroom = *in.Classroom
	}

	var b strings.Builder
	b.WriteString("# Laporan Supervisi Guru\n\n")
	fmt.Fprintf(&b, "**Periode:** %s\n", in.Period)
	fmt.Fprintf(&b, "**Guru:** %s\n", in.TeacherName)
	fmt.Fprintf(&b, "**Mata Pelajaran:** %s\n", in.Subject)
	fmt.Fprintf(&b, "**Kelas:** %s\n\n", classroom)
	b.WriteString("## Ringkasan Penilaian\n")
	fmt.Fprintf(&b, "Rata-rata skor: **%.2f/5.00**\n", avg)
	fmt.Fprintf(&b, "Jumlah penilaian: **%d**\n\n", len(in.Assessments))

	if len(in.Assessments) == 0 {
		b.WriteString("## Tidak ada data penilaian untuk periode ini.\n")
	} else {
		b.WriteString("## Detail Penilaian\n\n")
		for _, a := range in.Assessments {
			fmt.Fprintf(&b, "### Aspek: %s\n", a.AspectName)
			fmt.Fprintf(&b, "- Skor: %d/5\n", a.Score)
			fmt.Fprintf(&b, "- Supervisor: %s\n", a.SupervisorName)
			if a.Feedback != nil && *a.Feedback != "" {
				fmt.Fprintf(&b, "- Feedback: %s\n", *a.Feedback)
			}
			fmt.Fprintf(&b, "- Tanggal: %s\n\n", localDate(a.CreatedAt, loc))
		}
		b.WriteString("## Analisis Aspek Penilaian\n\n")
		for _, s := range summaries {
			fmt.Fprintf(&b, "**%s**: Rata-rata %.2f/5.00\n", s.Aspect, s.Average)
		}
	}

	return AggregateResult{
		AverageScore:    avg,
		Content:         b.String(),
		Recommendations: RecommendationFor(avg),
		AspectSummary:   summaries,
	}
}

func mean(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum int
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}

// localDate renders d/m/yyyy without zero padding.
func localDate(t time.Time, loc *time.Location) string {
	lt := t.In(loc)
	return fmt.Sprintf("%d/%d/%d", lt.Day(), int(lt.Month()), lt.Year())
}
