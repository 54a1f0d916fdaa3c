package classifier

type entry struct {
	Name     string
	Keywords []string
}

// Словари хранятся слайсами, порядок важен при равном числе совпадений
var coinKeywords = []entry{
	{"BTC", []string{"Bitcoin", "BTC", "比特币", "Satoshi", "大饼"}},
	{"ETH", []string{"Ethereum", "ETH", "以太坊", "Vitalik", "Ether"}},
	{"SOL", []string{"Solana", "SOL", "索拉纳"}},
	{"BNB", []string{"Binance Coin", "BNB", "BSC", "Binance Smart Chain", "币安"}},
	{"USDT", []string{"Tether", "USDT", "泰达币"}},
	{"USDC", []string{"USDC", "Circle"}},
	{"FDUSD", []string{"FDUSD"}},
	{"DAI", []string{"DAI", "MakerDAO"}},
	{"XRP", []string{"Ripple", "XRP", "瑞波"}},
	{"ADA", []string{"Cardano", "ADA", "卡尔达诺"}},
	{"DOGE", []string{"Dogecoin", "DOGE", "狗狗币", "Elon Musk"}},
	{"AVAX", []string{"Avalanche", "AVAX", "雪崩"}},
	{"DOT", []string{"Polkadot", "DOT", "波卡"}},
	{"LINK", []string{"Chainlink", "LINK"}},
	{"MATIC", []string{"Polygon", "MATIC", "马蹄"}},
	{"LTC", []string{"Litecoin", "LTC", "莱特币"}},
	{"UNI", []string{"Uniswap", "UNI"}},
	{"ARB", []string{"Arbitrum", "ARB"}},
	{"OP", []string{"Optimism", "OP"}},
	{"SUI", []string{"Sui", "SUI"}},
	{"APT", []string{"Aptos", "APT"}},
	{"ORDI", []string{"Ordinals", "ORDI", "铭文", "BRC20", "BRC-20"}},
	{"PEPE", []string{"PEPE"}},
	{"WIF", []string{"WIF", "dogwifhat"}},
}

const (
	TopicMarket     = "Market"
	TopicRegulation = "Regulation"
	TopicDeFi       = "DeFi"
	TopicRWA        = "RWA"
	TopicStaking    = "Staking"
	TopicNFT        = "NFT"
	TopicLayer2     = "Layer2"
	TopicSecurity   = "Security"
	TopicExchange   = "Exchange"
	TopicTech       = "Tech"
	TopicOther      = "Other"
)

var topicKeywords = []entry{
	{TopicMarket, []string{"price", "market", "bull", "bear", "analysis", "chart", "trading", "volume", "行情", "价格", "牛市", "熊市", "分析", "暴涨", "暴跌", "ath", "atl"}},
	{TopicRegulation, []string{"sec", "regulation", "law", "court", "ban", "tax", "policy", "congress", "gensler", "监管", "政策", "法律", "起诉", "法院", "禁令", "税", "合规", "etf"}},
	{TopicDeFi, []string{"defi", "dex", "swap", "lending", "yield", "tvl", "uniswap", "aave", "curve", "流动性", "借贷", "amm"}},
	{TopicRWA, []string{"rwa", "real world", "tokenization", "treasury", "ondo", "blackrock", "现实世界资产", "国债", "代币化"}},
	{TopicStaking, []string{"staking", "restaking", "eigenlayer", "lido", "lsd", "validator", "质押", "再质押", "节点", "pos"}},
	{TopicNFT, []string{"nft", "gamefi", "metaverse", "opensea", "blur", "digital art", "元宇宙", "链游", "藏品", "game"}},
	{TopicLayer2, []string{"layer2", "l2", "rollup", "arbitrum", "optimism", "base", "zk-rollup", "zk", "starknet", "polygon", "blast", "manta"}},
	{TopicSecurity, []string{"hack", "exploit", "scam", "phishing", "stolen", "attack", "security", "alert", "黑客", "攻击", "被盗", "漏洞", "骗局", "私钥"}},
	{TopicExchange, []string{"exchange", "binance", "coinbase", "okx", "bybit", "kraken", "listing", "delisting", "交易所", "上币", "下架", "ieo", "launchpad"}},
	{TopicTech, []string{"upgrade", "fork", "mainnet", "testnet", "developer", "github", "升级", "分叉", "主网", "技术"}},
}

// Специфичные темы проверяются первыми, чтобы общие слова вроде "price" их не перебивали
var priorityTopics = []string{
	TopicSecurity,
	TopicRegulation,
	TopicRWA,
	TopicLayer2,
	TopicStaking,
	TopicDeFi,
	TopicNFT,
}
