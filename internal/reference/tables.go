package reference

// defaultCodes is the Taiwan 50 universe in display order.
var defaultCodes = []string{
	"2330", "2317", "2454", "2303", "3711", "2881", "2882", "2886", "2002", "1301",
	"1303", "2412", "2603", "6505", "3008", "4904", "2357", "2382", "6415", "2395",
	"2327", "2615", "5871", "3037", "2379", "1101", "1102", "1402", "1590", "1722",
	"2345", "2347", "2408", "2474", "2498", "2606", "2609", "2707", "2801", "2823",
	"2834", "2892", "3010", "3041", "3576", "4938", "1216", "2308", "2891", "2812",
	"8454",
}

// issuedShares maps code to issued shares in millions.
var issuedShares = map[string]float64{
	"2330": 25930, "2317": 13863, "2454": 1598, "2303": 12964, "3711": 4349, "2881": 14920,
	"2882": 13627, "2886": 13735, "2002": 15734, "1301": 9534, "1303": 7943, "2412": 9718,
	"2603": 2147, "6505": 10476, "3008": 131, "4904": 3450, "2357": 743, "2382": 2584,
	"6415": 635, "2395": 677, "2327": 2471, "2615": 4200, "5871": 1845, "3037": 982,
	"2379": 930, "1101": 7458, "1102": 7847, "1402": 4799, "1590": 790, "1722": 5163,
	"2345": 1650, "2347": 2474, "2408": 7421, "2474": 8125, "2498": 1673, "2606": 3740,
	"2609": 4216, "2707": 105, "2801": 9625, "2823": 12220, "2834": 9831, "2892": 13243,
	"3010": 354, "3041": 1488, "3576": 1184, "4938": 1657, "1216": 5373, "2308": 2614,
	"2891": 19576, "2812": 6703, "8454": 142,
}

type classification struct {
	Name   string
	Sector string
}

var classifications = map[string]classification{
	"2330": {"台積電", "電子: 晶圓代工"}, "2454": {"聯發科", "電子: IC 設計"},
	"2303": {"聯電", "電子: 晶圓代工"}, "3711": {"日月光投控", "電子: 封裝測試"},
	"6415": {"矽力*-KY", "電子: IC 設計"}, "2327": {"群聯", "電子: 記憶體"},
	"2408": {"南亞科", "電子: 記憶體"}, "2474": {"華邦電", "電子: 記憶體"},
	"3037": {"欣興", "電子: PCB"}, "2317": {"鴻海", "電子: 代工組裝"},
	"4938": {"和碩", "電子: 代工組裝"}, "2308": {"台達電", "電子: 零組件/電源"},
	"2357": {"華碩", "電子: PC/品牌"}, "2382": {"廣達", "電子: 伺服器/PC"},
	"2395": {"研華", "電子: 工業電腦"}, "3008": {"大立光", "電子: 光學元件"},
	"2498": {"宏達電", "電子: 通訊/VR"}, "1301": {"台塑", "塑膠/石化"},
	"1303": {"南亞", "塑膠/石化"}, "2002": {"中鋼", "鋼鐵"},
	"6505": {"台塑化", "塑膠/石化"}, "1101": {"台泥", "水泥"},
	"1102": {"亞泥", "水泥"}, "1402": {"遠東新", "紡織"},
	"2881": {"富邦金", "金融保險"}, "2882": {"國泰金", "金融保險"},
	"2886": {"兆豐金", "金融保險"}, "2891": {"中信金", "金融保險"},
	"2884": {"玉山金", "金融保險"}, "5871": {"中租-KY", "金融保險"},
	"2801": {"彰銀", "金融保險"}, "2823": {"華南金", "金融保險"},
	"2834": {"臺企銀", "金融保險"}, "2892": {"第一金", "金融保險"},
	"2412": {"中華電", "電信服務"}, "1216": {"統一", "食品"},
	"2603": {"長榮", "航運"}, "2609": {"陽明", "航運"},
	"2606": {"裕民", "航運"}, "2615": {"萬海", "航運"},
	"2912": {"統一超", "百貨零售"}, "3576": {"聯合再生", "綠能/太陽能"},
	"4904": {"遠傳", "電信服務"}, "3041": {"揚智", "電子: IC 設計"},
	"2707": {"晶華", "觀光"}, "1590": {"亞德客-KY", "機械設備"},
	"1722": {"台肥", "農業/肥料"}, "2345": {"智邦", "電子: 網通設備"},
	"2347": {"聯強", "電子: 通路服務"}, "3010": {"華立", "電子: 材料"},
	"2812": {"台灣大", "電信服務"}, "8454": {"富邦媒", "電子商務"},
}
