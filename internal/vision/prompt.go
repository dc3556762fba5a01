package vision

import "github.com/septivank/meter-reading-api/internal/db"

const (
	waterPrompt = `This is a picture of a hydrometer. Read the water volume shown by the red digits only. ` +
		`Respond with JSON of the form {"measure": <integer>} and nothing else.`
	gasPrompt = `This is a picture of a gas meter. Read the gas consumption shown by the red digits only. ` +
		`Respond with JSON of the form {"measure": <integer>} and nothing else.`
)

// PromptFor returns the instruction sent with a photo of the given meter type
func PromptFor(measureType db.MeasureType) string {
	if measureType == db.MeasureTypeWater {
		return waterPrompt
	}
	return gasPrompt
}
