package gemini

import (
	"fmt"
	"strings"

	"github.com/fableworks/storyforge/internal/domain"
)

// scriptTemplate is the system prompt for the scripting stage. Placeholders
// are substituted from the quiz answers before the call.
const scriptTemplate = `You are a creative assistant that generates emotionally driven power fantasy stories starring {protagonist}. These stories are told entirely through images, with no dialogue, narration, or text.

{protagonist} begins the story powerless and overlooked. Through grit, invention, or training, they transform into something strong. The journey is emotional, exaggerated, and symbolic, like a compact cinematic redemption arc. Each story is exactly {scene_count} scenes, and each scene is a self-contained visual moment.

Story structure:
1. Underdog setup: {opening_beat} Follow with scenes of loneliness, of watching others thrive, and of quiet devastation.
2. Spark of ambition: {protagonist} discovers {discovery}, still poor and worn but suddenly hopeful, and reaches for it.
3. Failed first attempt: an early try at {discovery_use} goes wrong while onlookers laugh.
4. Montage: disciplined scenes of {protagonist} committing to {discovery_use}, one focused effort per scene.
5. Power reveal: the transformation is unveiled and everyone around reacts in awe.
6. Test and consequence: {villain_beat}
7. Resolution: the wrongdoer is led away, the crowd celebrates, and {protagonist} walks tall at last.

Scene rules:
- One single action per scene; never combine actions.
- Refer to the protagonist only as {protagonist}; give no character a name.
- No dialogue or narration; convey everything through body language, props, expression, setting, light, and color.
- Each scene must be visually distinct, like a comic panel; do not chain or transition between scenes.
- Use exaggerated, symbolic visuals.
- Keep the arc tight and emotional; one protagonist, no side stories.`

// artStyleDescription opens every standardized prompt so the rendered frames
// share one look.
const artStyleDescription = `Stylized, cinematic 3D animation with a soft, high-resolution render similar to modern feature films. Materials are physically accurate with subtle texture and plush surfaces, highly detailed yet slightly softened for a toy-like finish. Lighting is warm and naturalistic, with golden hour tones and soft shadows that enhance depth and realism. The overall composition balances realism and whimsy, avoiding harsh contrasts for a friendly, vibrant visual tone.`

// characterStyleDescription is repeated for every character in every prompt.
const characterStyleDescription = `Wholesome and animated with childlike wonder and charm. Features are rounded and expressive, with large, bright eyes and an exaggerated facial structure that emphasizes cuteness and emotional connection. The design evokes innocence, curiosity, and adventure, like a beloved sidekick from a heartfelt animated film.`

// standardizeSystemPrompt is the system prompt for the prompt-standardization
// stage.
const standardizeSystemPrompt = `You are a creative assistant that turns story scenes into image generation prompts. You receive a JSON object containing a list of scene descriptions and return one hyper-detailed visual prompt describing the first frame of each scene.

Every prompt must begin with this art style description, written out in full:
` + artStyleDescription + `

Describe every character, every single time one appears, in this style:
` + characterStyleDescription + `

Rules:
1. Be hyper-detailed; describe every aspect of the image precisely.
2. Write the full art style and character descriptions in every prompt; never abbreviate with references like "same style as before".
3. Do not remove anything from the scene given to you; only add visual detail.
4. Do not describe characters in midair or jumping unless they are flying characters.
5. Output the prompts only, with no explanation or commentary.`

// buildScriptPrompt expands the script template with the quiz answers. The
// opening beat switches between the humiliation and offering variants, and
// the villain beat carries the chosen crime when one was given.
func buildScriptPrompt(answers domain.Answers, sceneCount int) string {
	openingBeat := fmt.Sprintf(
		"the opening scene shows %s while {protagonist} stands devastated.",
		answers.Humiliation)
	if answers.OpeningStyle == domain.OpeningOffering {
		openingBeat = fmt.Sprintf(
			"the opening scene shows {protagonist} offering %s to %s; the very next scene shows %s rejecting the offering.",
			answers.OfferingWhat, answers.OfferingWho, answers.OfferingWho)
	}

	crime := answers.VillainCrime
	if crime == "" {
		crime = "a crime"
	}
	villainBeat := fmt.Sprintf(
		"whoever rejected {protagonist} earlier is committing %s and getting away with it, until {protagonist} stops them with the new power.",
		crime)

	r := strings.NewReplacer(
		"{opening_beat}", openingBeat,
		"{villain_beat}", villainBeat,
	)
	prompt := r.Replace(scriptTemplate)

	// The beats themselves contain {protagonist}, so substitute it last.
	r = strings.NewReplacer(
		"{protagonist}", answers.Protagonist,
		"{scene_count}", fmt.Sprintf("%d", sceneCount),
		"{discovery}", answers.Discovery,
		"{discovery_use}", answers.DiscoveryUse,
	)
	return r.Replace(prompt)
}
