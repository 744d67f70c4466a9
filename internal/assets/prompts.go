package assets

// Prompt templates for the asset stage's LLM calls.

const promptSystem = `You are a visual designer for On, the Swiss running and athletic brand.
Your job is to create detailed image generation prompts for an Instagram post.`

const promptTemplate = `For the post idea below, craft 3 detailed image generation prompts:
- Version 1: Product-focused hero shot
- Version 2: Lifestyle/action shot with the product
- Version 3: Artistic/mood-driven composition

Each prompt should describe the image in detail, referencing:
- The product's appearance and key features
- On's brand aesthetic: clean, minimal, athletic, premium
- The idea's imagery_direction and mood
- Square 1080x1080 Instagram format
- On brand colors: black, white, and accent colors from the product
- Natural lighting, outdoor/urban settings

## Post idea:

%s

Return your output as a JSON array. Each entry must have:
idea_id (string), version (integer 1-3), prompt (string).

Return ONLY the JSON array, no other text.`

const imagePreambleTemplate = `Generate exactly one image for the prompt below. The image should be square (1080x1080).

Product reference photos are provided as input images. Use them as visual reference to accurately depict the product's real appearance, colors, shape, and details.

## Prompt:

%s`
