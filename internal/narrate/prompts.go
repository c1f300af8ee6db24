package narrate

import (
	"fmt"
	"strings"

	"github.com/deckvoice/deckvoice/internal/domain"
)

// placeholderContent stands in for slides with no extractable text so the
// narration pass still produces a paragraph for them.
const placeholderContent = "[No slide text]"

// styleInstructions returns tone-specific writing guidance for narration
// prompts.
func styleInstructions(tone domain.Tone) string {
	switch tone {
	case domain.ToneConversational, domain.ToneFriendly:
		return `**Narration Style: Conversational**
Write in a friendly, approachable conversational style:
- Use casual, friendly transitions
- Include rhetorical questions (do not overuse rhetorical questions)
- Use everyday language and relatable examples
- Create a dialogue feel
- Make transitions feel like natural conversation flow`
	case domain.ToneAcademic, domain.ToneTechnical:
		return `**Narration Style: Formal**
Write in a formal, structured manner:
- Use formal transitions
- Maintain professional language throughout
- Avoid contractions and casual expressions
- Present information systematically and authoritatively
- Keep transitions professional and clear`
	case domain.ToneSales, domain.TonePersuasive, domain.ToneBold:
		return `**Narration Style: Storytelling**
Write as a narrative that tells a story:
- Create a narrative arc across slides
- Build connections between slides like chapters in a story
- Use descriptive language to paint a picture
- Create anticipation
- Make the presentation feel like a cohesive narrative`
	case domain.ToneProfessional:
		return `**Narration Style: Professional**
Write in a polished, business-appropriate style:
- Use professional transitions
- Maintain a balanced, confident tone
- Use clear, structured language
- Present information with authority and clarity`
	default:
		return `**Narration Style: Human-like**
Write as if you're speaking naturally to an audience:
- Use conversational transitions
- Add natural connectives between slides
- Explain rather than just repeat: don't read bullet points verbatim, explain their meaning
- Use natural pauses indicated by paragraph breaks for longer content
- Make it sound like you're genuinely reading and explaining the slides`
	}
}

// lengthInstructions returns the length policy block shared by every
// narration prompt.
func lengthInstructions(policy domain.LengthPolicy) string {
	if policy.Mode == domain.LengthFixed {
		return fmt.Sprintf(`**Fixed Length**: Keep narration consistent across slides:
- Aim for %d-%d words per slide
- Maintain similar length for all slides regardless of content complexity
- Break into paragraphs only if exceeding 200 words
- Use "\n\n" (double newline) for paragraph breaks when needed`, policy.MinWords, policy.MaxWords)
	}
	return `**Dynamic Length**: Adjust the narration length based on slide content complexity.
- You are responsible for determining the current slide's complexity before writing the narration.
- Simple slides (low complexity): 50-100 words, concise and clear
- Medium complexity slides: 100-150 words, with added explanation
- Complex slides (high complexity): 150-200 words, structured into multiple paragraphs if needed
- For longer narrations, only when necessary use 200-400 words, split into 2-3 paragraphs using "\n\n" (double newline)
- Never exceed 400 words under any circumstances`
}

// complexityLabel classifies a slide by word volume so dynamic-length prompts
// can hint a proportional target.
func complexityLabel(content, notes string) string {
	total := len(strings.Fields(content)) + len(strings.Fields(notes))
	switch {
	case total > 150:
		return "High"
	case total > 50:
		return "Medium"
	default:
		return "Low"
	}
}

// lengthTargetHint gives the per-slide word target for the resolved
// complexity.
func lengthTargetHint(policy domain.LengthPolicy, complexity string) string {
	if policy.Mode == domain.LengthFixed {
		return fmt.Sprintf("Aim for %d-%d words.", policy.MinWords, policy.MaxWords)
	}
	switch complexity {
	case "Low":
		return "Aim for 50-100 words."
	case "Medium":
		return "Aim for 100-200 words."
	default:
		return `Aim for 200-400 words, split into 2-3 paragraphs using \n\n if needed.`
	}
}

func customInstructionsBlock(instructions string) string {
	if strings.TrimSpace(instructions) == "" {
		return ""
	}
	return fmt.Sprintf("\nADDITIONAL CUSTOM INSTRUCTIONS:\n%s\n", instructions)
}

// buildRewritePrompt creates the first-pass prompt that turns one slide's
// raw content into a clean narration script, independently of other slides.
func buildRewritePrompt(rawText string, hasImage bool, cfg domain.Configuration) string {
	source := "the slide text below"
	if hasImage {
		source = "this slide image"
	}

	prompt := fmt.Sprintf(`You are an expert presentation script writer. Analyze %s and create a clear, engaging narration script that explains the content on the slide.

- Make it structured, clear, and concise
- Explain the slide content meaningfully.
- Focus on explaining things that contain text such as charts, tables, lists, etc.
- Only describe those that are directly useful and relevant to the main information. Ignore images, icons, or visuals used solely for aesthetics (example: a company logo, a chart with no data).
- Maintain the key information and meaning
- DO NOT mention the slide number in your response
- Tone: %s
- Audience: %s
%s
CRITICAL JSON RESPONSE REQUIREMENTS:
- Return your response as a JSON object with exactly this structure:
{
    "rewritten_content": "narration script explaining slide content here"
}

- The "rewritten_content" value must be plain text only - NO markdown formatting, NO markdown syntax (no **, *, _, #, [], etc.), NO special formatting characters
- IMPORTANT: Do NOT use double quotes (") inside the rewritten_content string - use single quotes (') if you need to quote something, or rephrase to avoid quotes entirely
- Only return valid JSON, no markdown formatting or additional text outside the JSON object`,
		source, cfg.Tone, cfg.AudienceLevel, customInstructionsBlock(cfg.CustomInstructions))

	if !hasImage {
		prompt += fmt.Sprintf("\n\nSlide text:\n%s", rawText)
	}
	return prompt
}

// buildNarrationPrompt creates the second-pass prompt for one slide, fed with
// up to the five previous narration paragraphs as rolling context.
func buildNarrationPrompt(slideNumber, totalSlides int, slideContent, speakerNotes string, prevNarrations []string, cfg domain.Configuration) string {
	if len(prevNarrations) > 5 {
		prevNarrations = prevNarrations[len(prevNarrations)-5:]
	}

	prevBlock := "[No previous narrations available]"
	if len(prevNarrations) > 0 {
		lines := make([]string, 0, len(prevNarrations))
		for i, n := range prevNarrations {
			contextSlide := slideNumber - len(prevNarrations) + i
			lines = append(lines, fmt.Sprintf("- Slide %d narration: %s", contextSlide, n))
		}
		prevBlock = strings.Join(lines, "\n")
	}

	closing := "End with a transition to the next slide only if clearly suggested by the speaker notes."
	if slideNumber == totalSlides {
		closing = "Do NOT add a transition to a next slide; close the narration naturally."
	}

	complexity := complexityLabel(slideContent, speakerNotes)
	notesBlock := speakerNotes
	if strings.TrimSpace(notesBlock) == "" {
		notesBlock = "[None]"
	}

	return fmt.Sprintf(`You are a professional presenter creating a narration script.

%s

%s
- Content Complexity: %s. %s

Tone: Maintain a %s tone throughout.

IMPORTANT CONTEXT RULES:
- You may ONLY use the past narrations provided below as cross-slide context.
- Do NOT invent, reference, or imply any other slides beyond what is provided.
- Generally avoid repeating the same phrases, sentence structures, or opening flows from previous narrations.
- Reuse wording from past narrations only when it is necessary for clarity or continuity, and do not overuse it.
- DO NOT mention slide numbers in your narration (e.g., don't say "On slide 3"). The slide number is provided only for your reference to maintain proper order.

Past narrations (most recent last):
%s

Current slide to narrate:
- Slide number: %d of %d
- Rewritten Content (this is the explanation of the content of the current slide):
%s
- Speaker Notes:
%s

Structure requirements for THIS slide:
- Start in a way that fits the context, but vary the opening so it does not feel repetitive.
- Use a transition from previous narrations only when it adds value; avoid forced connectors.
- Explain the slide content meaningfully (do not read or restate bullets verbatim).
- Incorporate relevant speaker notes naturally, only when they add value and context.
- %s
%s
Return your response as a JSON object with exactly this key:
{
  "narration": "plain text narration here"
}

CRITICAL:
- Only return valid JSON, no markdown, no extra text.
- The narration must be plain text only
- NO markdown formatting, NO markdown syntax (no **, *, _, #, [], (), etc.), NO code blocks.
- If you need paragraph breaks, represent them using the two-character sequence \n\n (backslash-n-backslash-n) inside the JSON string.
- Do NOT include literal newlines or literal tabs inside the JSON string value (they must be escaped as \n and \t).`,
		styleInstructions(cfg.Tone),
		lengthInstructions(cfg.Length),
		complexity, lengthTargetHint(cfg.Length, complexity),
		cfg.Tone,
		prevBlock,
		slideNumber, totalSlides,
		slideContent,
		notesBlock,
		closing,
		customInstructionsBlock(cfg.CustomInstructions))
}

// buildLengthCorrectionPrompt asks the model to shrink or grow a narration
// that landed outside the fixed-length bounds, without changing its meaning.
func buildLengthCorrectionPrompt(narration string, words int, policy domain.LengthPolicy) string {
	return fmt.Sprintf(`You are an expert presentation script editor.

The narration below is %d words long, but it must be between %d and %d words.
Rewrite it to fit that range exactly, preserving the meaning, tone, and all key
information. Do not add new facts.

Narration:
%s

Return your response as a JSON object with exactly this key:
{
  "narration": "adjusted narration here"
}

CRITICAL:
- Only return valid JSON, no markdown, no extra text.
- The narration must be plain text only, no markdown syntax.
- Use \n\n for paragraph breaks inside the JSON string; do NOT include literal newlines.`,
		words, policy.MinWords, policy.MaxWords, narration)
}

// buildPolishPrompt creates the optional flow-refinement prompt that smooths
// all narrations at once while keeping the per-slide mapping intact.
func buildPolishPrompt(slidesInputJSON string, cfg domain.Configuration) string {
	return fmt.Sprintf(`You are an expert presentation speech writer.
I have a list of narrations for a presentation, one for each slide.
The current narrations might have awkward phrasing or lack smooth transitions between slides.

Your task is to REWRITE the narrations to improve the flow, coherence, and speakability.

CRITICAL RULES:
1. Keep the same TONE: %s
2. DO NOT change the core meaning or content. Just smooth out the wording.
3. Ensure logical transitions between slides where appropriate.
4. Formatting should be natural speech.
5. Return EVERY slide from the input, with the same slide_number values.
6. RETURN DATA MUST BE A JSON ARRAY of objects.

Input Data:
%s

Output Format (JSON ONLY):
[
    {
        "slide_number": 1,
        "refined_narration": "..."
    },
    ...
]`, cfg.Tone, slidesInputJSON)
}

// buildRefinePrompt creates the single-slide refinement prompt applying a
// user instruction to one narration.
func buildRefinePrompt(currentNarration, rewrittenContent, speakerNotes, instruction string, cfg domain.Configuration) string {
	return fmt.Sprintf(`You are an expert narration rewriter helping to refine presentation scripts.

You have been given:
- The current narration for a slide
- The rewritten content (explanation of slide content)
- Speaker notes (if any)
- The user's specific request for how to modify the narration

Your task is to rewrite the narration according to the user's request while maintaining:
- The core information from the rewritten content and speaker notes
- The specified tone: %s
- Natural, speakable language
- Appropriate length (unless user requests otherwise)

Context:
- Rewritten Content: %s
- Speaker Notes: %s
- Current Narration: %s
- User Request: %s

Instructions:
- Carefully apply the user's requested changes
- Maintain the factual information unless user asks to change it
- Keep it natural and conversational
- DO NOT mention slide numbers
- If the user's request is unclear, do your best interpretation

Return your response as a JSON object:
{
  "rewritten_narration": "the new narration text here"
}

CRITICAL:
- Only return valid JSON, no markdown, no extra text
- The narration must be plain text only
- NO markdown formatting (no **, *, _, #, [], (), etc.)
- Use \n\n for paragraph breaks inside the JSON string
- Do NOT include literal newlines in the JSON`,
		cfg.Tone, rewrittenContent, speakerNotes, currentNarration, instruction)
}

// buildGlobalRewritePrompt creates the whole-deck rewrite prompt driven by a
// single user instruction.
func buildGlobalRewritePrompt(slidesInputJSON, instruction string, cfg domain.Configuration) string {
	return fmt.Sprintf(`You are an expert presentation script writer.
I have a list of narrations for a presentation, one for each slide.
The user wants to completely REWRITE all these narrations based on a new instruction.

CRITICAL RULES:
1. Follow the USER REQUEST strictly for the rewrite.
2. Maintain the same slide order and return EVERY slide from the input.
3. Maintain the TONE: %s unless the user explicitly asks to change it.
4. Keep the rewritten narration focused on the same core points as the current one, but change the delivery according to the user request.
5. RETURN DATA MUST BE A JSON ARRAY of objects.

USER NEW REQUEST:
%s

Input Data:
%s

Output Format (JSON ONLY):
[
    {
        "slide_number": 1,
        "rewritten_narration": "..."
    },
    ...
]`, cfg.Tone, instruction, slidesInputJSON)
}

// unescapeNarration converts escape sequences that survived JSON decoding
// (models sometimes double-escape) into real whitespace.
func unescapeNarration(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, `\n\n`, "\n\n")
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\t`, "\t")
	return s
}
