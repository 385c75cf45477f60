package imagegen

import "fmt"

const descriptionTemplate = `You are helping create an image-generation prompt.
A user uploaded the attached image and asked: "%s"

Write one detailed prompt for an image-generation model that produces the image the user wants. Cover:
1. The elements of the original image that should be kept (subjects, composition, setting).
2. The modifications the user requested.
3. The desired style, lighting, colour palette and mood.
4. Any new elements that should be added.

Reply with the prompt text only, with no preamble, headings or quotes.`

// BuildDescriptionInstruction fills the fixed description template with the
// user's request.
func BuildDescriptionInstruction(userPrompt string) string {
	return fmt.Sprintf(descriptionTemplate, userPrompt)
}
