package reasoning

const systemPrompt = `You are a helpful multimodal assistant.`

const userPromptSuffix = "Please answer concisely in English, using the images as context."

// MaxImages caps how many frames are attached to one request.
const MaxImages = 30
