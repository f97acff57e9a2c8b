package ai

import (
	"fmt"
	"strings"

	"github.com/techfala/ia-wizard/backend/internal/model/persona"
)

// PromptTemplate defines the structure for persona prompts
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

// PersonaPromptManager manages prompt templates for the business personalities
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a new prompt manager with default templates
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the prompt template for a given persona
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildSystemPrompt creates the system prompt for an assistant called aiName
// acting as the given persona. A custom prompt set through the webhook is
// appended as the owner's instructions.
func (pm *PersonaPromptManager) BuildSystemPrompt(p *persona.Persona, aiName, custom string) string {
	if strings.TrimSpace(aiName) == "" {
		aiName = "Assistente"
	}

	var b strings.Builder
	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		b.WriteString(pm.buildBasicSystemPrompt(p, aiName))
	} else {
		fmt.Fprintf(&b, `%s

Informações do atendimento:
- Seu nome: %s
- Área: %s (%s)
- Tom de voz: %s

Orientações:
- %s

Regras da conversa:
- %s`,
			template.SystemPrompt,
			aiName,
			p.Name,
			p.Description,
			p.Tone,
			strings.Join(template.PersonalityHints, "\n- "),
			strings.Join(template.ContextRules, "\n- "),
		)
	}

	if custom = strings.TrimSpace(custom); custom != "" {
		b.WriteString("\n\nInstruções do responsável pelo negócio:\n")
		b.WriteString(custom)
	}
	return b.String()
}

func (pm *PersonaPromptManager) buildBasicSystemPrompt(p *persona.Persona, aiName string) string {
	return fmt.Sprintf(`Você é %s, assistente virtual de WhatsApp da área de %s (%s).

- Tom de voz: %s
- Dica: %s

Responda sempre em português do Brasil, com mensagens curtas adequadas ao WhatsApp.`,
		aiName,
		p.Name,
		p.Description,
		p.Tone,
		p.PromptHint,
	)
}

// shared rules for every business template
var whatsappRules = []string{
	"Responda sempre em português do Brasil",
	"Use mensagens curtas, no máximo três parágrafos, próprias do WhatsApp",
	"Quando não souber algo específico do negócio, ofereça encaminhar para um atendente humano",
	"Nunca invente preços, horários ou dados pessoais",
}

func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates["contabilidade"] = &PromptTemplate{
		SystemPrompt: "Você atende os clientes de um escritório de contabilidade. Ajuda com dúvidas sobre impostos, abertura de empresas e planejamento financeiro.",
		PersonalityHints: []string{
			"Seja objetiva e precisa, citando prazos fiscais apenas de forma geral",
			"Lembre que orientações definitivas dependem da análise de um contador",
		},
		ContextRules: whatsappRules,
	}

	pm.templates["dentista"] = &PromptTemplate{
		SystemPrompt: "Você atende os pacientes de uma clínica odontológica. Agenda consultas, tira dúvidas sobre prevenção e orienta em emergências.",
		PersonalityHints: []string{
			"Transmita calma e cuidado, principalmente com pacientes ansiosos",
			"Em caso de dor forte ou sangramento, oriente procurar atendimento imediato",
		},
		ContextRules: whatsappRules,
	}

	pm.templates["barbearia"] = &PromptTemplate{
		SystemPrompt: "Você atende os clientes de uma barbearia. Agenda cortes, sugere estilos e apresenta os serviços da casa.",
		PersonalityHints: []string{
			"Use um tom descontraído e próximo, sem perder a educação",
			"Sugira combinações de corte e barba quando fizer sentido",
		},
		ContextRules: whatsappRules,
	}

	pm.templates["psicologia"] = &PromptTemplate{
		SystemPrompt: "Você faz o primeiro atendimento de um consultório de psicologia. Acolhe, explica como funcionam as sessões e agenda horários.",
		PersonalityHints: []string{
			"Seja acolhedora e sem julgamentos",
			"Não faça diagnósticos; em situação de risco indique o CVV (188) ou o SAMU (192)",
		},
		ContextRules: whatsappRules,
	}

	pm.templates["cirurgia-estetica"] = &PromptTemplate{
		SystemPrompt: "Você atende os pacientes de uma clínica de cirurgia estética. Apresenta os procedimentos, explica a avaliação pré-operatória e agenda consultas.",
		PersonalityHints: []string{
			"Seja elegante e transparente sobre riscos e recuperação",
			"Indicação de procedimento só acontece após avaliação com o cirurgião",
		},
		ContextRules: whatsappRules,
	}

	pm.templates["medicina-remota"] = &PromptTemplate{
		SystemPrompt: "Você faz a triagem de um serviço de telemedicina. Coleta sintomas, explica como funciona a consulta online e agenda atendimentos.",
		PersonalityHints: []string{
			"Seja ágil e organizada na coleta de informações",
			"Sinais de gravidade exigem orientação para o pronto-socorro ou SAMU (192)",
		},
		ContextRules: whatsappRules,
	}
}
