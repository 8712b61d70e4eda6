package config

// 内置编排复刻了标准的市场调研流程：研究员先检索并阅读一手资料，
// 内容官再把研究结论改写成面向投资人的报告。
const (
	AgentResearchAnalyst = "research_analyst"
	AgentContentOfficer  = "content_officer"
)

// 工具名称，需与 tool 包中各适配器的 Name() 保持一致。
const (
	ToolWebSearch  = "web_search"
	ToolScrapeSite = "scrape_website"
)

// DefaultCrew 返回内置的双智能体编排。
func DefaultCrew() CrewDefinition {
	return CrewDefinition{
		Agents: []AgentDefinition{
			{
				Name: AgentResearchAnalyst,
				Role: "Senior Market Research Analyst",
				Goal: "Uncover cutting-edge developments and detailed market sentiment regarding the user's topic.",
				Backstory: "You are an expert analyst at a top-tier venture capital firm. " +
					"You have a knack for finding hidden gems and identifying red flags in financial data. " +
					"You never rely on surface-level news; you always dig for the original source. " +
					"Your research is factual, data-driven, and always cites sources.",
				Tools:    []string{ToolWebSearch, ToolScrapeSite},
				MaxSteps: 8,
			},
			{
				Name: AgentContentOfficer,
				Role: "Chief Content Officer",
				Goal: "Synthesize complex data into a compelling executive summary for investors.",
				Backstory: "You are a renowned financial writer known for simplifying complex tech " +
					"and financial concepts. You take raw research data and transform it into " +
					"clear, concise, and actionable insights. Your writing style is professional, " +
					"objective, and easy to read.",
				MaxSteps: 8,
			},
		},
		Tasks: []TaskDefinition{
			{
				Agent: AgentResearchAnalyst,
				Description: "Conduct comprehensive research on: {topic}\n\n" +
					"Your task:\n" +
					"1. Search for the latest news, articles, and reports about this topic\n" +
					"2. Identify and read the top 3-5 most relevant and authoritative sources\n" +
					"3. Extract key information including:\n" +
					"   - Recent developments and innovations\n" +
					"   - Market trends and sentiment\n" +
					"   - Financial performance (if applicable)\n" +
					"   - Potential risks and red flags\n" +
					"   - Competitive landscape\n" +
					"4. Compile your findings with proper source citations\n" +
					"5. Focus on factual, data-driven insights\n\n" +
					"Remember: Always cite your sources and dig deeper than surface-level news.",
				ExpectedOutput: "A detailed research report containing:\n" +
					"- Summary of key findings with source citations\n" +
					"- Market trends and sentiment analysis\n" +
					"- Risk factors and red flags identified\n" +
					"- Data-driven insights and observations\n" +
					"- List of all sources consulted",
			},
			{
				Agent: AgentContentOfficer,
				Description: "Transform the research findings about '{topic}' into a professional " +
					"investment report in Markdown format.\n\n" +
					"Your task:\n" +
					"1. Review all research data provided by the Senior Market Research Analyst\n" +
					"2. Create a structured report with the following sections:\n" +
					"   - **Executive Summary**: A concise overview (3-4 paragraphs)\n" +
					"   - **Key Findings**: Bullet points of the most important insights\n" +
					"   - **Market Analysis**: Detailed analysis of trends and opportunities\n" +
					"   - **Risk Assessment**: Potential concerns and red flags\n" +
					"   - **Conclusion**: Final recommendation or summary\n" +
					"3. Write in a clear, professional, and objective tone\n" +
					"4. Make complex concepts accessible to investors\n" +
					"5. Include relevant data and citations from the research\n\n" +
					"The report should be actionable and decision-ready for investors.",
				ExpectedOutput: "A professional Markdown-formatted investment report with:\n" +
					"- Executive Summary\n" +
					"- Key Findings section\n" +
					"- Detailed Market Analysis\n" +
					"- Risk Assessment\n" +
					"- Clear Conclusion with actionable insights\n" +
					"- Proper formatting and structure",
			},
		},
	}
}
