// Copyright 2025 TSBot authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package router

import "github.com/nhdandz/tsbot/internal/model"

// DefaultRoutes are used when no route file is configured. They cover
// the admissions-chatbot domain: score lookups and comparisons route to
// the SQL engine, regulation/faq route to RAG, school_info routes to the
// school-info node, and greeting routes to the general node.
var DefaultRoutes = []model.Route{
	{
		Name:        "score_lookup",
		Description: "Tra cuu diem chuan, chi tieu tuyen sinh",
		Examples: []string{
			"Điểm chuẩn Học viện Kỹ thuật Quân sự năm 2024",
			"Điểm chuẩn năm nay là bao nhiêu",
			"Với 25 điểm khối A có vào được không",
			"Trường nào điểm thấp nhất",
			"So sánh điểm chuẩn 2023 và 2024",
			"Chỉ tiêu tuyển sinh năm nay",
			"Điểm sàn các trường quân đội",
			"Học viện Quân y lấy bao nhiêu điểm",
			"Điểm chuẩn ngành công nghệ thông tin",
			"25 điểm vào được trường nào",
		},
	},
	{
		Name:        "regulation",
		Description: "Hoi ve quy dinh, tieu chuan, dieu kien, thu tuc tuyen sinh",
		Examples: []string{
			"Tiêu chuẩn sức khỏe để thi vào quân đội",
			"Điều kiện đăng ký xét tuyển",
			"Yêu cầu về chính trị như thế nào",
			"Quy trình đăng ký xét tuyển",
			"Hồ sơ cần những gì",
			"Độ tuổi được đăng ký là bao nhiêu",
			"Chiều cao tối thiểu là bao nhiêu",
			"Có cần khám sức khỏe không",
			"Quy định về đối tượng ưu tiên",
			"Tổ hợp môn thi vào trường quân đội",
		},
	},
	{
		Name:        "faq",
		Description: "Cau hoi thuong gap ve doi song, che do, chinh sach",
		Examples: []string{
			"Học quân đội có được miễn học phí không",
			"Ra trường được phân công ở đâu",
			"Có được về thăm nhà không",
			"Lương học viên là bao nhiêu",
			"Học bao lâu thì ra trường",
			"Nữ có được thi vào không",
			"Cận thị có được thi không",
			"Có hình xăm có được thi không",
		},
	},
	{
		Name:        "greeting",
		Description: "Chao hoi, cam on, tam biet",
		Examples: []string{
			"Xin chào", "Chào bạn", "Hello", "Hi",
			"Cảm ơn bạn", "Thanks", "Tạm biệt", "Bye",
			"Bạn là ai", "Bạn có thể giúp gì",
		},
	},
	{
		Name:        "comparison",
		Description: "So sanh cac truong, nganh hoc",
		Examples: []string{
			"So sánh Học viện KTQS và Học viện Quân y",
			"Trường nào tốt nhất",
			"Ngành nào có tương lai",
			"Nên chọn trường nào",
			"So sánh điểm các trường",
			"Trường nào khó vào nhất",
		},
	},
	{
		Name:        "school_info",
		Description: "Gioi thieu, thong tin tong quan ve truong",
		Examples: []string{
			"Giới thiệu về Học viện Kỹ thuật Quân sự",
			"Học viện Hải quân có những ngành gì",
			"Thông tin về Trường Sĩ quan Lục quân",
			"Cho tôi biết về Học viện Quân y",
			"Học viện Biên phòng ở đâu",
			"Giới thiệu trường quân đội",
		},
	},
}
