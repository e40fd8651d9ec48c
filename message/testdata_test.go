package message

const adtA01 = "MSH|^~\\&|EPIC|HOSP^1.2.3^ISO|LAB|CLINIC|20240115103000-0500||ADT^A01^ADT_A01|MSG00001|P|2.5\r" +
	"EVN|A01|20240115103000\r" +
	"PID|1||PATID1234^^^HOSP^MR~ALT99^^^OTHER^PI||DOE^JOHN^MIDDLE||19800101|M|||123 MAIN ST^^SPRINGFIELD^IL^62701\r" +
	"PV1|1|I|WARD^101^A\r" +
	"OBX|1|NM|8867-4^Heart rate^LN||72|/min|60-100|N|||F\r" +
	"OBX|2|ST|NOTE^Note||see \\F\\ attached\\E\\text||||||F\r"
