package gradecalc

// GradeResult pairs a letter grade with its grade-point value.
type GradeResult struct {
	Letter string  `json:"letter"`
	Point  float64 `json:"point"`
}

type cutoff struct {
	min    float64
	letter string
	point  float64
}

// Ordered cutoffs with inclusive lower bounds, evaluated top-down.
var cutoffs = []cutoff{
	{80, "A", 4.0},
	{75, "B+", 3.5},
	{70, "B", 3.0},
	{65, "C+", 2.5},
	{60, "C", 2.0},
	{55, "D+", 1.5},
	{50, "D", 1.0},
}

// GradeLetters lists every letter the cutoff table can produce, best first.
var GradeLetters = []string{"A", "B+", "B", "C+", "C", "D+", "D", "F"}

// ResolveGrade maps a total score onto the letter scale. Defined for every
// real input: anything below 50 (including negatives) is F, anything at or
// above 80 (including over 100) is A.
func ResolveGrade(total float64) GradeResult {
	for _, c := range cutoffs {
		if total >= c.min {
			return GradeResult{Letter: c.letter, Point: c.point}
		}
	}
	return GradeResult{Letter: "F", Point: 0}
}
