package sentiment

// lexicon maps lowercase tokens to integer valences in [-5, 5], AFINN
// style. Unlisted tokens score 0.
var lexicon = map[string]int{
	// positive
	"good":        3,
	"great":       3,
	"greatest":    3,
	"excellent":   3,
	"amazing":     4,
	"awesome":     4,
	"fantastic":   4,
	"wonderful":   4,
	"love":        3,
	"loved":       3,
	"loves":       3,
	"like":        2,
	"liked":       2,
	"likes":       2,
	"enjoy":       2,
	"enjoyed":     2,
	"happy":       3,
	"glad":        3,
	"pleased":     3,
	"delighted":   3,
	"thanks":      2,
	"thank":       2,
	"helpful":     2,
	"helped":      2,
	"perfect":     3,
	"best":        3,
	"better":      2,
	"nice":        3,
	"cool":        1,
	"fine":        2,
	"fun":         4,
	"brilliant":   4,
	"superb":      5,
	"outstanding": 5,
	"impressive":  3,
	"impressed":   3,
	"satisfied":   2,
	"smooth":      2,
	"easy":        1,
	"clear":       1,
	"fast":        1,
	"works":       1,
	"working":     1,
	"yes":         1,
	"wow":         4,
	"beautiful":   3,
	"recommend":   2,
	"recommended": 2,
	"useful":      2,
	"reliable":    2,
	"friendly":    2,
	"polite":      2,
	"resolved":    2,
	"solved":      2,

	// negative
	"bad":          -3,
	"worse":        -3,
	"worst":        -3,
	"terrible":     -3,
	"horrible":     -3,
	"awful":        -3,
	"hate":         -3,
	"hated":        -3,
	"hates":        -3,
	"dislike":      -2,
	"disliked":     -2,
	"angry":        -3,
	"furious":      -4,
	"annoyed":      -2,
	"annoying":     -2,
	"frustrated":   -2,
	"frustrating":  -2,
	"disappointed": -2,
	"disappointing": -2,
	"sad":          -2,
	"unhappy":      -2,
	"upset":        -2,
	"broken":       -1,
	"breaks":       -1,
	"bug":          -2,
	"buggy":        -3,
	"slow":         -2,
	"confusing":    -2,
	"confused":     -2,
	"useless":      -2,
	"wrong":        -2,
	"error":        -2,
	"errors":       -2,
	"fail":         -2,
	"failed":       -2,
	"fails":        -2,
	"failure":      -2,
	"problem":      -2,
	"problems":     -2,
	"issue":        -1,
	"issues":       -1,
	"crash":        -2,
	"crashed":      -2,
	"crashes":      -2,
	"stupid":       -2,
	"dumb":         -3,
	"garbage":      -3,
	"rubbish":      -2,
	"no":           -1,
	"never":        -1,
	"cancel":       -1,
	"refund":       -2,
	"complaint":    -2,
	"unacceptable": -3,
	"scam":         -4,
}
